package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/mcpServer"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/extractor"
	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <pdf>",
		Short: "Build and store the tree index for a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, true)
			if err != nil {
				return err
			}
			defer closeApp(a)

			res, err := a.Service.Ingest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, res, renderIngest)
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "search <doc_id> <question>",
		Short: "Find the pages of an indexed document that answer a question",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, true)
			if err != nil {
				return err
			}
			defer closeApp(a)

			question := strings.Join(args[1:], " ")
			res, err := a.Service.Query(cmd.Context(), args[0], question, depth)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, res, renderQuery)
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "Tree levels to descend (0 = MAX_TREE_DEPTH)")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			docs, err := a.Service.ListDocuments(cmd.Context(), validate)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, docs, renderDocuments)
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "Drop rows whose tree file is missing")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doc_id>",
		Short: "Delete a document's tree, index row and stored PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			deleted, err := a.Service.DeleteDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("document %q not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("deleted ")+args[0])
			return nil
		},
	}
}

func newPurgeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove index rows whose tree file no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			removed, err := a.Service.PurgeStaleEntries(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d stale entries\n", successStyle.Render("purged"), removed)
			return nil
		},
	}
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var pages, pageRange string
	cmd := &cobra.Command{
		Use:   "extract <pdf>",
		Short: "Print the text of selected pages",
		Long:  "Print the text of selected pages. Without --pages or --range every page is extracted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages != "" && pageRange != "" {
				return fmt.Errorf("use either --pages or --range, not both")
			}
			settings := opts.settings()
			e := extractor.NewPageExtractor(extractor.Options{
				MaxFileSizeBytes: settings.MaxPDFSizeBytes(),
				PageTimeout:      config.PageExtractTimeout,
			})
			ctx := cmd.Context()

			var res *extractor.ExtractionResult
			var err error
			switch {
			case pages != "":
				list, perr := parsePages(pages)
				if perr != nil {
					return perr
				}
				res, err = e.ExtractPages(ctx, args[0], list, "")
			case pageRange != "":
				start, end, perr := parseRange(pageRange)
				if perr != nil {
					return perr
				}
				res, err = e.ExtractPageRange(ctx, args[0], start, end, "")
			default:
				total, cerr := e.GetPageCount(ctx, args[0])
				if cerr != nil {
					return cerr
				}
				res, err = e.ExtractPageRange(ctx, args[0], 1, total, "")
			}
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, res, renderExtraction)
		},
	}
	cmd.Flags().StringVarP(&pages, "pages", "p", "", "Comma separated page numbers, e.g. 1,3,5")
	cmd.Flags().StringVarP(&pageRange, "range", "r", "", "Inclusive page range, e.g. 2-4")
	return cmd
}

func newInfoCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <pdf>",
		Short: "Show PDF metadata and outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := opts.settings()
			e := extractor.NewPageExtractor(extractor.Options{
				MaxFileSizeBytes: settings.MaxPDFSizeBytes(),
				PageTimeout:      config.PageExtractTimeout,
			})
			info, err := e.GetDocumentMetadata(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, info, renderInfo)
		},
	}
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve list_documents, search_document and get_page over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, true)
			if err != nil {
				return err
			}
			defer closeApp(a)
			return mcpServer.Serve(cmd.Context(), a.Service, version)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pageindex %s\n", versionString())
		},
	}
}

// emit prints v as indented JSON or through its styled renderer.
func emit[T any](w io.Writer, jsonOut bool, v T, render func(T) string) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, render(v))
	return err
}

// parsePages reads "1,3,5". Validation against the page count happens in
// the extractor.
func parsePages(s string) ([]int, error) {
	var pages []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		pages = append(pages, n)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages in %q", s)
	}
	return pages, nil
}

// parseRange reads "2-4" or a single page "7".
func parseRange(s string) (int, int, error) {
	startStr, endStr, found := strings.Cut(strings.TrimSpace(s), "-")
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range %q", s)
	}
	if !found {
		return start, start, nil
	}
	end, err := strconv.Atoi(strings.TrimSpace(endStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range %q", s)
	}
	if end < start {
		return 0, 0, fmt.Errorf("invalid range %q: end before start", s)
	}
	return start, end, nil
}
