package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/firedoc/internal/docstore"
	"github.com/msto63/firedoc/internal/value"
)

var (
	listPageSize  int32
	listPageToken string
	fieldMask     []string
	createID      string
	createData    string
)

var listCmd = &cobra.Command{
	Use:   "list <collection>",
	Short: "List one page of documents of a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			var docs []docstore.Document
			var next string
			err := s.retry(cmd, func(ctx context.Context) (err error) {
				docs, next, err = s.client.ListDocuments(ctx, args[0], listPageSize, listPageToken, fieldMask...)
				return err
			})
			if err != nil {
				return err
			}
			out := struct {
				Documents     []documentJSON `json:"documents"`
				NextPageToken string         `json:"next_page_token,omitempty"`
			}{Documents: make([]documentJSON, 0, len(docs)), NextPageToken: next}
			for _, d := range docs {
				out.Documents = append(out.Documents, toJSON(d))
			}
			return printJSON(out)
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <document>",
	Short: "Read a single document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			var doc docstore.Document
			err := s.retry(cmd, func(ctx context.Context) (err error) {
				doc, err = s.client.GetDocument(ctx, args[0], fieldMask...)
				return err
			})
			if err != nil {
				return err
			}
			return printJSON(toJSON(doc))
		})
	},
}

var createCmd = &cobra.Command{
	Use:   "create <collection>",
	Short: "Create a document from a JSON object",
	Example: `  firedoc create test --id doc1 --data '{"name":"chiba","done":false}'
  firedoc create test --data @task.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data := []byte(createData)
		if len(createData) > 0 && createData[0] == '@' {
			var err error
			if data, err = os.ReadFile(createData[1:]); err != nil {
				return err
			}
		}
		fields, err := value.ParseJSONFields(data)
		if err != nil {
			return err
		}
		return withSession(cmd, func(s *session) error {
			doc, err := s.client.CreateDocument(cmd.Context(), args[0], createID, fields)
			if err != nil {
				return err
			}
			return printJSON(toJSON(doc))
		})
	},
}

type documentJSON struct {
	Name       string                 `json:"name"`
	ID         string                 `json:"id"`
	CreateTime string                 `json:"create_time,omitempty"`
	UpdateTime string                 `json:"update_time,omitempty"`
	Fields     map[string]interface{} `json:"fields"`
}

func toJSON(d docstore.Document) documentJSON {
	return documentJSON{
		Name:       d.Name,
		ID:         d.ID,
		CreateTime: formatTime(d.CreateTime),
		UpdateTime: formatTime(d.UpdateTime),
		Fields:     value.FieldsToNative(d.Fields),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func init() {
	listCmd.Flags().Int32Var(&listPageSize, "page-size", 0, "documents per page (default: server default)")
	listCmd.Flags().StringVar(&listPageToken, "page-token", "", "continue from a previous page")
	listCmd.Flags().StringSliceVar(&fieldMask, "mask", nil, "return only these fields")
	getCmd.Flags().StringSliceVar(&fieldMask, "mask", nil, "return only these fields")
	createCmd.Flags().StringVar(&createID, "id", "", "document id (default: assigned by the store)")
	createCmd.Flags().StringVar(&createData, "data", "{}", "document fields as JSON, or @file")

	rootCmd.AddCommand(listCmd, getCmd, createCmd)
}
