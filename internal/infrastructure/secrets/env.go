package secrets

import (
	"context"
	"os"
	"strings"
	"unicode"

	domainsync "airsync/internal/domain/sync"
)

const envAccessToken = "AIRSYNC_ACCESS_TOKEN"

// EnvProvider читает токен из AIRSYNC_ACCESS_TOKEN_<ID>, затем из общего AIRSYNC_ACCESS_TOKEN
type EnvProvider struct {
	// LookupEnv подменяется в тестах
	LookupEnv func(key string) (string, bool)
}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{LookupEnv: os.LookupEnv}
}

func (p *EnvProvider) Resolve(_ context.Context, integrationID string) (map[string]string, error) {
	for _, key := range []string{envAccessToken + "_" + envSuffix(integrationID), envAccessToken} {
		if v, ok := p.LookupEnv(key); ok && v != "" {
			return map[string]string{domainsync.SecretAccessToken: v}, nil
		}
	}
	return nil, ErrNotFound
}

// envSuffix приводит id к виду, допустимому в имени переменной окружения
func envSuffix(id string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, id)
}
