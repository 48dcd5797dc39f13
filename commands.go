package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"tagtint/colormodel"
	"tagtint/logger"
	"tagtint/palette"
	"tagtint/storage"
	"tagtint/stylesheet"
	"tagtint/vault"
)

var (
	cssDoc  string
	cssTags []string
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage tag colors",
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tag colors",
	Args:  cobra.NoArgs,
	RunE:  runTagsList,
}

var tagsSetCmd = &cobra.Command{
	Use:   "set <tag> <#rrggbb>",
	Short: "Assign a color to a tag",
	Args:  cobra.ExactArgs(2),
	RunE:  runTagsSet,
}

var tagsUnsetCmd = &cobra.Command{
	Use:   "unset <tag>",
	Short: "Remove the color of a tag",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagsUnset,
}

var tagsAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Give every vault tag without a color a generated one",
	Args:  cobra.NoArgs,
	RunE:  runTagsAssign,
}

var cssCmd = &cobra.Command{
	Use:   "css",
	Short: "Print the generated stylesheet",
	Long:  "Print the tag color rules and, when --doc or --tags is given, the accent overrides for that document.",
	Args:  cobra.NoArgs,
	RunE:  runCSS,
}

var accentsCmd = &cobra.Command{
	Use:   "accents",
	Short: "List accent variables found in the configured stylesheets",
	Args:  cobra.NoArgs,
	RunE:  runAccents,
}

var convertCmd = &cobra.Command{
	Use:   "convert <color>",
	Short: "Convert a color between hex, rgb() and hsl()",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	cssCmd.Flags().StringVar(&cssDoc, "doc", "", "Vault-relative path of the active document")
	cssCmd.Flags().StringSliceVar(&cssTags, "tags", nil, "Tags of the active document, first one decides the accent")

	tagsCmd.AddCommand(tagsListCmd, tagsSetCmd, tagsUnsetCmd, tagsAssignCmd)
	rootCmd.AddCommand(tagsCmd, cssCmd, accentsCmd, convertCmd)
}

func runTagsList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	colors, err := storage.New(cfg.DataDir, cfg.DefaultTagColors).Load()
	if err != nil {
		return err
	}
	printSwatches(cmd.OutOrStdout(), colors)
	return nil
}

func runTagsSet(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tag := storage.NormalizeTag(args[0])
	if tag == "" {
		return errors.New("empty tag")
	}
	hex, err := colormodel.NormalizeHex(args[1])
	if err != nil {
		return err
	}

	store := storage.New(cfg.DataDir, cfg.DefaultTagColors)
	colors, err := store.Load()
	if err != nil {
		return err
	}
	colors[tag] = hex
	if err := store.Save(colors); err != nil {
		return err
	}
	log.WithFields(map[string]any{"tag": tag, "color": hex}).Info("tag color saved")
	return nil
}

func runTagsUnset(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tag := storage.NormalizeTag(args[0])

	store := storage.New(cfg.DataDir, cfg.DefaultTagColors)
	colors, err := store.Load()
	if err != nil {
		return err
	}
	if _, ok := colors[tag]; !ok {
		return fmt.Errorf("tag %q has no color", tag)
	}
	delete(colors, tag)
	if err := store.Save(colors); err != nil {
		return err
	}
	log.WithFields(map[string]any{"tag": tag}).Info("tag color removed")
	return nil
}

func runTagsAssign(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.VaultDir == "" {
		return errors.New("no vault configured; pass --vault or set vault_dir")
	}

	tags, err := vault.New(cfg.VaultDir, cfg.Poll(), log).AllTags()
	if err != nil {
		return err
	}

	store := storage.New(cfg.DataDir, cfg.DefaultTagColors)
	colors, err := store.Load()
	if err != nil {
		return err
	}

	assigned := palette.Assign(tags, colors)
	if len(assigned) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "every tag already has a color")
		return nil
	}
	for tag, color := range assigned {
		colors[tag] = color
	}
	if err := store.Save(colors); err != nil {
		return err
	}
	printSwatches(cmd.OutOrStdout(), assigned)
	return nil
}

func runCSS(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a := newApp(cfg, log)
	if err := a.plugin.Start(); err != nil {
		return err
	}
	defer a.plugin.Stop()

	switch {
	case cssDoc != "":
		if err := a.plugin.OpenDocument(cssDoc); err != nil {
			return err
		}
	case len(cssTags) > 0:
		if err := a.plugin.SetActiveTags(cssTags); err != nil {
			return err
		}
	}

	_, err = io.WriteString(cmd.OutOrStdout(), a.registry.CSS())
	return err
}

func runAccents(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Stylesheets) == 0 {
		return errors.New("no stylesheets configured; pass --stylesheet or set stylesheets")
	}

	src := stylesheet.FromFiles(log, cfg.RootSelectors, cfg.Stylesheets...)
	out := cmd.OutOrStdout()
	for _, name := range stylesheet.Discover(src) {
		value := src.Resolve(name)
		if value == "" {
			value = "(not set at root)"
		}
		fmt.Fprintf(out, "--%s\t%s\n", name, value)
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	_, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rgb := parseAnyColor(log, args[0])
	hsl := rgb.HSL()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, swatch(rgb.Hex()), rgb.Hex())
	fmt.Fprintln(out, colormodel.FormatRGB(rgb))
	fmt.Fprintln(out, colormodel.FormatHSL(hsl))
	return nil
}

// parseAnyColor accepts hex, rgb() or hsl() input. Unparseable input falls
// back to the format's documented default and is logged.
func parseAnyColor(log *logger.Logger, in string) colormodel.RGB {
	s := strings.TrimSpace(in)
	switch {
	case strings.HasPrefix(s, "rgb("):
		c, err := colormodel.ParseRGB(s)
		if err != nil {
			log.Error(err, "using fallback rgb")
			return colormodel.FallbackRGB
		}
		return c
	case strings.HasPrefix(s, "hsl("):
		hex, err := colormodel.HSLStringToHex(s)
		if err != nil {
			log.Error(err, "using fallback hex")
			hex = colormodel.FallbackHex
		}
		c, _ := colormodel.ParseHex(hex)
		return c
	default:
		c, err := colormodel.ParseHex(s)
		if err != nil {
			log.Error(err, "using fallback hex")
			c, _ = colormodel.ParseHex(colormodel.FallbackHex)
		}
		return c
	}
}

var tagNameStyle = lipgloss.NewStyle().Bold(true)

func swatch(hex string) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render("    ")
}

func printSwatches(w io.Writer, colors map[string]string) {
	tags := make([]string, 0, len(colors))
	width := 0
	for tag := range colors {
		tags = append(tags, tag)
		width = max(width, lipgloss.Width(tag))
	}
	sort.Strings(tags)

	for _, tag := range tags {
		color := colors[tag]
		name := tagNameStyle.Foreground(lipgloss.Color(color)).Width(width + 2).Render("#" + tag)
		fmt.Fprintf(w, "%s %s %s\n", swatch(color), name, color)
	}
}
