package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hmgle/harcapture/pkg/masking"
	"github.com/hmgle/harcapture/pkg/pathhint"
)

func newMaskCmd() *cobra.Command {
	var (
		stringFields []string
		numberFields []string
		stringMask   string
		numberMask   string
		mimeType     string
	)

	cmd := &cobra.Command{
		Use:   "mask [flags] [file]",
		Short: "Mask fields of a JSON body read from a file or stdin",
		Long: `Mask fields of a JSON body the same way recorded bodies are masked.

Examples:
  echo '{"password": "hunter2", "pin": 1234}' | harcapture mask -s password -n pin
  harcapture mask -s token --string-mask '<redacted>' response.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			body, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read body: %w", err)
			}

			m := masking.New()
			m.Apply(
				masking.WithRequestFieldMaskString(stringFields, maskList(stringMask)...),
				masking.WithRequestFieldMaskNumber(numberFields, maskList(numberMask)...),
			)

			masked, err := masking.MaskBody(string(body), mimeType, m.RequestFieldMasksString, m.RequestFieldMasksNumber)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), masked)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&stringFields, "string", "s", nil, "Fields whose string values are masked")
	flags.StringSliceVarP(&numberFields, "number", "n", nil, "Fields whose number values are masked")
	flags.StringVar(&stringMask, "string-mask", "", "Replacement for string values (default "+masking.DefaultStringMask+")")
	flags.StringVar(&numberMask, "number-mask", "", "Replacement for number values (default "+masking.DefaultNumberMask+")")
	flags.StringVar(&mimeType, "mime-type", "application/json", "Mime type of the body")

	return cmd
}

func maskList(mask string) []string {
	if mask == "" {
		return nil
	}
	return []string{mask}
}

func newPathHintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pathhint <template>...",
		Short: "Normalize route templates into path hints",
		Long: `Normalize route templates into the path hints sent with every exchange.

Examples:
  harcapture pathhint "GET /v1/user/{id}/action/{action...}"
  harcapture pathhint /v1/user/:id/action/:action`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, template := range args {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), pathhint.Normalize(template)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
