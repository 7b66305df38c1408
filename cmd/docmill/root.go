// docmill converts a corpus of PDFs into flattened structured JSON
// records plus extracted figure/table images, optionally enriched with
// bibliographic metadata from an external service.
//
// Usage:
//
//	docmill run [inputs...] -o <output-root> [--recursive] [-w N]
//	docmill serve [--port 8090]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "docmill",
	Short: "Batch PDF extraction pipeline with bibliographic enrichment",
	Long: "Docmill drives PDFs through layout extraction, schema flattening and\n" +
		"best-effort bibliographic enrichment, writing one merged JSON record\n" +
		"plus cropped images per document.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
