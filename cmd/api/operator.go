package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eris-support/triage-service/internal/auth"
	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/service"
)

var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Manage operator accounts",
}

var operatorCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an operator account",
	RunE:  runOperatorCreate,
}

var operatorLinkTelegramCmd = &cobra.Command{
	Use:   "link-telegram",
	Short: "Allow a Telegram account to use the notification bot as an operator",
	RunE:  runOperatorLinkTelegram,
}

var linkFlags struct {
	email      string
	telegramID int64
}

var operatorFlags struct {
	email    string
	name     string
	password string
	role     string
}

func init() {
	f := operatorCreateCmd.Flags()
	f.StringVar(&operatorFlags.email, "email", "", "login email")
	f.StringVar(&operatorFlags.name, "name", "", "display name")
	f.StringVar(&operatorFlags.password, "password", "", fmt.Sprintf("initial password (min %d characters)", auth.MinPasswordLength))
	f.StringVar(&operatorFlags.role, "role", string(domain.OperatorRoleOperator), "operator or admin")
	_ = operatorCreateCmd.MarkFlagRequired("email")
	_ = operatorCreateCmd.MarkFlagRequired("password")
	operatorCmd.AddCommand(operatorCreateCmd)

	lf := operatorLinkTelegramCmd.Flags()
	lf.StringVar(&linkFlags.email, "email", "", "operator login email")
	lf.Int64Var(&linkFlags.telegramID, "telegram-id", 0, "numeric Telegram user id")
	_ = operatorLinkTelegramCmd.MarkFlagRequired("email")
	_ = operatorLinkTelegramCmd.MarkFlagRequired("telegram-id")
	operatorCmd.AddCommand(operatorLinkTelegramCmd)
}

var errOperatorsNeedDatabase = errors.New("operator accounts need POSTGRES_DSN; in-memory accounts vanish on exit")

func runOperatorCreate(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()
	if !rt.pg.Enabled() {
		return errOperatorsNeedDatabase
	}

	authService := service.NewAuthService(rt.cfg.Auth, rt.operators)
	op, err := authService.CreateOperator(cmd.Context(), operatorFlags.email, operatorFlags.name, operatorFlags.password, domain.OperatorRole(operatorFlags.role))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "operator %s created (id %s, role %s)\n", op.Email, op.ID, op.Role)
	return nil
}

func runOperatorLinkTelegram(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()
	if !rt.pg.Enabled() {
		return errOperatorsNeedDatabase
	}

	authService := service.NewAuthService(rt.cfg.Auth, rt.operators)
	op, err := authService.LinkTelegram(cmd.Context(), linkFlags.email, linkFlags.telegramID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "telegram %d linked to %s (%d accounts)\n", linkFlags.telegramID, op.Email, len(op.TelegramIDs))
	return nil
}
