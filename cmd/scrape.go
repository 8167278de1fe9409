package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	scrapeURL    string
	scrapeName   string
	scrapeOutput string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape a single restaurant website and print the parsed menu",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Scraper.Scrape(ctx, scrapeURL)
		if err != nil {
			return eris.Wrap(err, "scrape")
		}

		menu, err := env.Extractor.ParseMenu(ctx, result.Text, scrapeName)
		if err != nil {
			return eris.Wrap(err, "parse menu")
		}

		zap.L().Info("scrape complete",
			zap.String("url", scrapeURL),
			zap.Int("items", len(menu.Items)),
			zap.Int("categories", len(menu.Categories)),
		)

		switch scrapeOutput {
		case "yaml":
			out, err := yaml.Marshal(menu)
			if err != nil {
				return eris.Wrap(err, "marshal yaml")
			}
			_, err = os.Stdout.Write(out)
			return err
		default:
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(menu)
		}
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeURL, "url", "", "restaurant website URL (required)")
	scrapeCmd.Flags().StringVar(&scrapeName, "name", "", "restaurant name used in prompts")
	scrapeCmd.Flags().StringVar(&scrapeOutput, "output", "json", "output format: json or yaml")
	_ = scrapeCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(scrapeCmd)
}
