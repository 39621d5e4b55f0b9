package integration

import (
	"github.com/spf13/cobra"
)

var outputFormat string

// IntegrationCmd - родительская команда для операций с интеграциями
var IntegrationCmd = &cobra.Command{
	Use:   "integration",
	Short: "Управление интеграциями",
	Long:  `Создание и просмотр подключений к базам Airtable.`,
}

func init() {
	IntegrationCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "формат вывода: table, json или yaml")
}
