package commands

import (
	"fmt"

	"github.com/eclipse-pass/depositsvc/pkg/adminapi"
	"github.com/eclipse-pass/depositsvc/pkg/config"
	"github.com/spf13/cobra"
)

var tokenOperator string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator bearer token",
	Long: `Issue a short-lived bearer token for the admin API's operator-guarded
endpoints (e.g. deposit remediation).

The token is signed with the configured admin_api.operator_secret, so it is
only valid against a server loaded from the same configuration.

Examples:
  depositsvc token --operator alice`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "", "Name of the operator the token identifies")
	_ = tokenCmd.MarkFlagRequired("operator")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	validator := adminapi.NewTokenValidator(cfg.AdminAPI.OperatorSecret, cfg.AdminAPI.Issuer)
	token, err := validator.Issue(tokenOperator, cfg.AdminAPI.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Println(token)
	return nil
}
