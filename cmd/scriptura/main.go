package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coolbeans/scriptura/pkg/citation"
	"github.com/coolbeans/scriptura/pkg/config"
	"github.com/coolbeans/scriptura/pkg/linkcheck"
	"github.com/coolbeans/scriptura/pkg/locale"
	"github.com/coolbeans/scriptura/pkg/scripture"
)

var version = "0.1.0"

// app holds what the root command resolves before any subcommand runs.
type app struct {
	cfg     config.Config
	catalog *locale.Catalog
	logger  zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "scriptura",
		Short: "Find, mark up and link Bible citations in text",
		Long: `Scriptura finds Bible citations such as "John 3:16" or "Psalms 3:1-3"
in free text and can:
  - list them with their positions
  - wrap them in markup
  - turn them into links to an online study Bible
  - check that the generated links resolve

Text is read from --file, from the arguments, or from stdin.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.catalog != nil {
				a.catalog.StopWatch()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (YAML or JSON)")
	flags.StringP("locale", "l", locale.DefaultLocale, "Locale ID")
	flags.String("site", locale.DefaultSite, "Study site used for links")
	flags.String("locale-dir", "", "Directory with additional locale YAML files")
	flags.Bool("watch", false, "Reload locale files from --locale-dir when they change")
	flags.BoolP("verbose", "v", false, "Debug logging on stderr")

	rootCmd.AddCommand(findCmd(a))
	rootCmd.AddCommand(surroundCmd(a))
	rootCmd.AddCommand(linkCmd(a))
	rootCmd.AddCommand(urlCmd(a))
	rootCmd.AddCommand(booksCmd(a))
	rootCmd.AddCommand(localesCmd(a))
	rootCmd.AddCommand(detectCmd(a))
	rootCmd.AddCommand(verifyCmd(a))
	rootCmd.AddCommand(streamCmd(a))

	return rootCmd
}

// setup merges config file, environment and flags, in that order, then
// builds the logger and the locale catalog.
func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Flags()

	cfg := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	if flags.Changed("locale") {
		cfg.Locale, _ = flags.GetString("locale")
	}
	if flags.Changed("site") {
		cfg.Site, _ = flags.GetString("site")
	}
	if flags.Changed("locale-dir") {
		cfg.LocaleDir, _ = flags.GetString("locale-dir")
	}
	if flags.Changed("watch") {
		cfg.Watch, _ = flags.GetBool("watch")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	var err error
	if cfg.LocaleDir != "" {
		a.catalog, err = locale.NewCatalogWithDirectory(cfg.LocaleDir, locale.WithLogger(a.logger))
	} else {
		a.catalog, err = locale.Builtin(locale.WithLogger(a.logger))
	}
	if err != nil {
		return fmt.Errorf("failed to load locales: %w", err)
	}

	if cfg.Watch {
		if err := a.catalog.Watch(); err != nil {
			return fmt.Errorf("failed to watch locales: %w", err)
		}
		a.catalog.SetOnChange(func(event string, loc *locale.Locale) {
			if loc != nil {
				a.logger.Info().Str("event", event).Str("locale", loc.ID).Msg("locale reloaded")
			}
		})
	}

	return nil
}

// currentLocale returns the configured locale. It is looked up on every call so a
// watched catalog serves the latest version.
func (a *app) currentLocale() (*locale.Locale, error) {
	return a.catalog.Get(a.cfg.Locale)
}

func (a *app) annotator() (*locale.Locale, *citation.Annotator, error) {
	loc, err := a.currentLocale()
	if err != nil {
		return nil, nil, err
	}
	return loc, loc.NewAnnotator(citation.WithLogger(a.logger)), nil
}

func (a *app) site(loc *locale.Locale) (citation.Site, error) {
	return loc.Site(a.cfg.Site)
}

// readInput returns the text named by --file, the joined arguments, or stdin.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func writeJSON(out io.Writer, value interface{}) error {
	jsonData, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize JSON: %w", err)
	}
	_, err = fmt.Fprintln(out, string(jsonData))
	return err
}

func findCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find [text]",
		Short: "List the citations in text",
		Long: `List every citation found in the input, left to right.

Example:
  scriptura find "Two popular scriptures are Genesis 1:1 and John 3:16."
  scriptura find --file sermon.txt --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			_, annotator, err := a.annotator()
			if err != nil {
				return err
			}

			refs := annotator.References(text)
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, refs)
			}
			for _, ref := range refs {
				fmt.Fprintf(out, "%d\t%s\t%s\n", ref.Span.Start, ref.Raw, ref.String())
			}
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Input file")
	cmd.Flags().Bool("json", false, "Print references as JSON")

	return cmd
}

func surroundCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "surround [text]",
		Short: "Wrap citations in markup",
		Long: `Wrap every citation with a prefix and a postfix.

Example:
  scriptura surround "Read John 3:16."                 # Read **John 3:16**.
  scriptura surround --prefix "<b>" --postfix "</b>" --file notes.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := a.cfg.Surround.Prefix
			postfix := a.cfg.Surround.Postfix
			if cmd.Flags().Changed("prefix") {
				prefix, _ = cmd.Flags().GetString("prefix")
			}
			if cmd.Flags().Changed("postfix") {
				postfix, _ = cmd.Flags().GetString("postfix")
			}

			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			_, annotator, err := a.annotator()
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), annotator.Surround(text, prefix, postfix))
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Input file")
	cmd.Flags().String("prefix", "**", "Text inserted before each citation")
	cmd.Flags().String("postfix", "**", "Text inserted after each citation")

	return cmd
}

func linkCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link [text]",
		Short: "Turn citations into Markdown links",
		Long: `Replace every citation with a Markdown link to the configured study site.

Example:
  scriptura link "All friends should practice Proverbs 17:17!"
  scriptura link --locale es_sp --file notas.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			loc, annotator, err := a.annotator()
			if err != nil {
				return err
			}
			site, err := a.site(loc)
			if err != nil {
				return err
			}

			linked, err := annotator.Link(text, site)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), linked)
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Input file")

	return cmd
}

func urlCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "url <citation>",
		Short: "Print the study-site URL for one citation",
		Long: `Print the URL for a single citation.

Example:
  scriptura url Matthew 24:14-15`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := a.currentLocale()
			if err != nil {
				return err
			}
			site, err := a.site(loc)
			if err != nil {
				return err
			}

			ref, err := scripture.ParseReference(strings.Join(args, " "), loc)
			if err != nil {
				return err
			}
			uri, err := scripture.ResolveURL(ref, site)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	}
}

func booksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List the books of the locale",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			loc, err := a.currentLocale()
			if err != nil {
				return err
			}

			books := loc.Registry().Books()
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, books)
			}
			for _, book := range books {
				fmt.Fprintf(out, "%2d  %-22s %s\n", book.Index, book.Name, strings.Join(book.Aliases, ", "))
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Print books as JSON")

	return cmd
}

func localesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locales",
		Short: "List available locales and their sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, loc := range a.catalog.List() {
				siteNames := make([]string, 0)
				for _, site := range loc.Sites() {
					siteNames = append(siteNames, site.Name)
				}
				fmt.Fprintf(out, "%-8s %-20s v%-8s %d books  sites: %s\n",
					loc.ID, loc.Name, loc.Version, loc.Registry().Len(), strings.Join(siteNames, ", "))
			}
			return nil
		},
	}
}

func detectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [text]",
		Short: "Guess the locale of the citations in text",
		Long: `Score every available locale by the share of citations it recognises.

Example:
  scriptura detect "Lea Génesis 1:1 y Juan 3:16."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")

			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			detector := locale.NewDetectorWithOptions(a.catalog, locale.DetectorOptions{MinConfidence: minConfidence})
			matches := detector.Detect(text)
			if len(matches) == 0 {
				return fmt.Errorf("no locale recognises any citation in the input")
			}

			out := cmd.OutOrStdout()
			for i := range matches {
				fmt.Fprintln(out, matches[i].String())
			}
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Input file")
	cmd.Flags().Float64("min-confidence", 0, "Hide locales at or below this confidence (0-1)")

	return cmd
}

func verifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [text]",
		Short: "Check that the links for the citations in text resolve",
		Long: `Build the study-site link for every citation in the input and check
that each one resolves. Requests are rate limited per host.

Example:
  scriptura verify --file sermon.txt
  scriptura verify --file sermon.txt --format markdown --output links.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			loc, annotator, err := a.annotator()
			if err != nil {
				return err
			}
			site, err := a.site(loc)
			if err != nil {
				return err
			}

			links := linkcheck.Dedupe(linkcheck.LinksFromText(annotator, text, site))
			a.logger.Debug().Int("links", len(links)).Str("site", site.Name).Msg("verifying links")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			checker := linkcheck.NewChecker(a.cfg.LinkCheck, linkcheck.WithLogger(a.logger))
			report := checker.Check(ctx, links)

			var rendered string
			switch formatStr {
			case "text":
				rendered = report.String()
			case "markdown":
				rendered = report.ToMarkdown()
			case "json":
				jsonData, err := report.ToJSON()
				if err != nil {
					return fmt.Errorf("failed to serialize JSON: %w", err)
				}
				rendered = string(jsonData) + "\n"
			default:
				return fmt.Errorf("unknown format: %s (use text, markdown or json)", formatStr)
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(rendered), 0644); err != nil {
					return fmt.Errorf("failed to write file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Link report written to: %s\n", output)
			} else {
				fmt.Fprint(cmd.OutOrStdout(), rendered)
			}

			if !report.OK() {
				return fmt.Errorf("%d of %d links are broken", len(report.Broken), report.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Input file")
	cmd.Flags().String("format", "text", "Report format (text, markdown, json)")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file")

	return cmd
}

func streamCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Annotate stdin line by line",
		Long: `Read stdin line by line and write each line surrounded or linked.
With --watch, edits to locale files in --locale-dir apply to the next line.

Example:
  tail -f chat.log | scriptura stream --mode link --locale-dir ./locales --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("mode")
			if mode != "surround" && mode != "link" {
				return fmt.Errorf("unknown mode: %s (use surround or link)", mode)
			}

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Text()

				loc, err := a.currentLocale()
				if err != nil {
					return err
				}

				if mode == "surround" {
					fmt.Fprintln(out, scripture.Surround(line, a.cfg.Surround.Prefix, a.cfg.Surround.Postfix, loc))
					continue
				}

				linked, err := scripture.Link(line, a.cfg.Site, loc)
				if err != nil {
					// One bad citation should not end the stream.
					a.logger.Warn().Err(err).Msg("line left unlinked")
					linked = line
				}
				fmt.Fprintln(out, linked)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().String("mode", "surround", "What to do with each line (surround, link)")

	return cmd
}
