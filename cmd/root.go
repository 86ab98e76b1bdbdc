// Package cmd holds the oraculo CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "oraculo",
	Short: "Oráculo - assistente de atendimento da loja de espetos",
	Long: `Oráculo responde perguntas de clientes sobre o catálogo de produtos
via Telegram, com base em uma base de conhecimento vetorial alimentada
pelo catálogo relacional, páginas do Notion e arquivos PDF.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
