package integration

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"airsync/cmd/airsync/cmd/types"
	"airsync/internal/app"
	"airsync/internal/domain/integration"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var (
	addFile           string
	addID             string
	addName           string
	addBaseID         string
	addCollections    []string
	addContainers     []string
	addImagesEndpoint string
	addNoImages       bool
	addNoToken        bool
)

var AddCmd = &cobra.Command{
	Use:   "add",
	Short: "Добавить интеграцию",
	Long: `Создает интеграцию из флагов или из YAML файла (--file).

Если настроен файл секретов, команда запрашивает токен доступа Airtable
и сохраняет его в зашифрованном виде.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		req, err := buildRequest(cmd)
		if err != nil {
			return err
		}

		intg, err := a.Integrations.Create(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to create integration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s integration %s (%s)\n", color.GreenString("Created"), intg.ID, intg.Name)

		if addNoToken {
			return nil
		}
		token, err := readToken(cmd)
		if err != nil {
			return err
		}
		if token == "" {
			return nil
		}
		if err := a.SaveToken(cmd.Context(), intg.ID, token); err != nil {
			if errors.Is(err, app.ErrNoSecretsFile) {
				fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("Token was not saved: set AIRSYNC_SECRETS_FILE or export AIRSYNC_ACCESS_TOKEN"))
				return nil
			}
			return fmt.Errorf("failed to save token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Access token saved")
		return nil
	},
}

func buildRequest(cmd *cobra.Command) (integration.CreateRequest, error) {
	var req integration.CreateRequest
	if addFile != "" {
		raw, err := os.ReadFile(addFile)
		if err != nil {
			return req, fmt.Errorf("failed to read %s: %w", addFile, err)
		}
		if err := yaml.Unmarshal(raw, &req); err != nil {
			return req, fmt.Errorf("failed to parse %s: %w", addFile, err)
		}
	}

	// флаги дополняют или переопределяют файл
	flags := cmd.Flags()
	if flags.Changed("id") {
		req.ID = addID
	}
	if flags.Changed("name") {
		req.Name = addName
	}
	if flags.Changed("base") {
		req.Config.BaseID = addBaseID
	}
	if flags.Changed("collections") {
		req.Config.ScopeType = integration.ScopeCollections
		req.Config.CollectionIDsToSync = addCollections
	}
	if flags.Changed("containers") {
		req.Config.ScopeType = integration.ScopeContainers
		req.Config.ContainerIDsToSync = addContainers
	}
	if flags.Changed("images-endpoint") {
		req.Config.ImagesPublicEndpoint = addImagesEndpoint
	}
	if flags.Changed("no-images") {
		req.Config.DisableUploadingItemImages = addNoImages
	}
	return req, nil
}

// readToken спрашивает токен без эха на терминале или читает строку из stdin
func readToken(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Airtable access token (empty to skip): ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	raw, err := io.ReadAll(io.LimitReader(in, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func init() {
	bindAddFlags(AddCmd)
}

func bindAddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&addFile, "file", "f", "", "YAML файл с описанием интеграции")
	cmd.Flags().StringVar(&addID, "id", "", "id интеграции (по умолчанию генерируется)")
	cmd.Flags().StringVar(&addName, "name", "", "название")
	cmd.Flags().StringVar(&addBaseID, "base", "", "id базы Airtable (appXXXX)")
	cmd.Flags().StringSliceVar(&addCollections, "collections", nil, "коллекции для синхронизации")
	cmd.Flags().StringSliceVar(&addContainers, "containers", nil, "контейнеры для синхронизации")
	cmd.Flags().StringVar(&addImagesEndpoint, "images-endpoint", "", "публичный адрес изображений")
	cmd.Flags().BoolVar(&addNoImages, "no-images", false, "не выгружать изображения предметов")
	cmd.Flags().BoolVar(&addNoToken, "no-token", false, "не запрашивать токен доступа")
}
