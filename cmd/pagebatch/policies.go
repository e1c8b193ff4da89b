package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/FiratKiziltepe/pagebatch/internal/config"
	"github.com/FiratKiziltepe/pagebatch/pkg/ratelimit"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List the rate-limit policy of every known model",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, map[string]string{"policy-file": config.KeyPolicyFile}); err != nil {
			return err
		}
		policies, err := loadPolicyTable(v.GetString(config.KeyPolicyFile))
		if err != nil {
			return err
		}
		renderPolicies(cmd.OutOrStdout(), policies)
		return nil
	},
}

func init() {
	policiesCmd.Flags().String("policy-file", "", "YAML file overriding the built-in policies")
}

// loadPolicyTable returns the built-in table merged with path when set.
func loadPolicyTable(path string) (ratelimit.PolicyTable, error) {
	if path == "" {
		return ratelimit.NewPolicyTable(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()

	policies, err := ratelimit.LoadPolicies(f)
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return policies, nil
}

func renderPolicies(w io.Writer, policies ratelimit.PolicyTable) {
	models := make([]string, 0, len(policies))
	for model := range policies {
		models = append(models, model)
	}
	sort.Strings(models)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Model", "RPM", "TPM", "RPD", "Context", "Min delay"})
	for _, model := range models {
		p := policies[model]
		rpd := "unlimited"
		if p.RequestsPerDay > 0 {
			rpd = fmt.Sprint(p.RequestsPerDay)
		}
		t.AppendRow(table.Row{model, p.RequestsPerMinute, p.TokensPerMinute, rpd, p.ContextWindowTokens, p.MinDelay()})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d models", len(models))})
	t.Render()
}
