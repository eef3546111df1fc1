// Command miractl runs the Mira routing pipeline offline: classify a
// message, decide its skill, and inspect the skill catalog and taxonomy.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/advisorhub/mira/internal/router"
	"github.com/advisorhub/mira/pkg/models"
)

var (
	taxonomyPath string
	verbose      bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "miractl",
		Short:         "Inspect Mira intent routing",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level).With().Timestamp().Logger()
		},
	}
	root.PersistentFlags().StringVar(&taxonomyPath, "taxonomy", "", "YAML taxonomy file (defaults to the embedded taxonomy)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newClassifyCmd(), newDecideCmd(), newSkillsCmd(), newTopicsCmd())
	return root
}

// turnFlags are the context flags shared by classify and decide.
type turnFlags struct {
	module   string
	page     string
	previous string
}

func (f *turnFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.module, "module", "m", string(models.ModuleCustomer), "current UI module")
	cmd.Flags().StringVarP(&f.page, "page", "p", "/", "current UI page")
	cmd.Flags().StringVar(&f.previous, "previous-topic", "", "topic of the previous turn")
}

func (f *turnFlags) context() (*models.MiraContext, error) {
	module := models.MiraModule(f.module)
	if !module.Valid() {
		return nil, fmt.Errorf("unknown module %q", f.module)
	}
	return &models.MiraContext{Module: module, Page: f.page}, nil
}

func newService() (*router.Service, error) {
	opts := router.Options{}
	if taxonomyPath != "" {
		data, err := os.ReadFile(taxonomyPath)
		if err != nil {
			return nil, fmt.Errorf("read taxonomy: %w", err)
		}
		tax, err := router.ParseTaxonomy(data)
		if err != nil {
			return nil, err
		}
		opts.Taxonomy = tax
	}
	return router.NewService(opts), nil
}

func newClassifyCmd() *cobra.Command {
	var f turnFlags
	cmd := &cobra.Command{
		Use:   "classify <message>",
		Short: "Classify a message and select its agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			miraCtx, err := f.context()
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			cls := svc.ClassifyIntent(cmd.Context(), args[0], miraCtx, router.ClassifyOptions{PreviousTopic: f.previous})
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"classification": cls,
				"selection":      svc.SelectAgent(cls),
				"label":          router.IntentLabel(cls.Intent),
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newDecideCmd() *cobra.Command {
	var (
		f         turnFlags
		nextSkill string
	)
	cmd := &cobra.Command{
		Use:   "decide <message>",
		Short: "Run the fast route, classification and skill decision for a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			miraCtx, err := f.context()
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			req := &models.ChatRequest{
				Mode:     models.ModeBatch,
				Messages: []models.ChatMessage{{Role: models.RoleUser, Content: args[0], HasContent: true}},
				Metadata: map[string]interface{}{},
				Context:  miraCtx,
			}
			if nextSkill != "" {
				req.Metadata["nextSkill"] = nextSkill
			}

			cls := svc.ClassifyIntent(cmd.Context(), args[0], miraCtx, router.ClassifyOptions{PreviousTopic: f.previous})
			sel := svc.SelectAgent(cls)
			transition := router.DetectTopicSwitch(f.previous, cls.Topic, cls.Confidence)
			out := map[string]interface{}{
				"fastRoute":      router.FastRoute(req),
				"classification": cls,
				"selection":      sel,
				"decision": router.DecideSkill(router.DecideInput{
					Classification: cls,
					Selection:      sel,
					Request:        req,
				}),
				"needsClarification": router.NeedsClarification(cls.ConfidenceTier) || router.ShouldPromptForSwitch(transition),
			}
			if router.ShouldPromptForSwitch(transition) {
				out["transition"] = router.GenerateTransitionMessage(transition.FromTopic, transition.ToTopic)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&nextSkill, "next-skill", "", "metadata nextSkill hint")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
