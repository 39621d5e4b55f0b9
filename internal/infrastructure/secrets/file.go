package secrets

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = chacha20poly1305.KeySize
	saltLength    = 16

	fileVersion     = 1
	filePermissions = 0o600
)

// ErrWrongPassphrase файл не расшифровывается переданной фразой
var ErrWrongPassphrase = errors.New("wrong secrets passphrase")

// envelope формат файла на диске
type envelope struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

// FileProvider хранит секреты всех интеграций в одном зашифрованном файле.
// Ключ выводится из фразы через argon2id, данные шифруются XChaCha20-Poly1305.
type FileProvider struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

func NewFileProvider(path, passphrase string) *FileProvider {
	return &FileProvider{path: path, passphrase: []byte(passphrase)}
}

func (p *FileProvider) Resolve(_ context.Context, integrationID string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	all, _, err := p.load()
	if err != nil {
		return nil, err
	}
	s, ok := all[integrationID]
	if !ok || len(s) == 0 {
		return nil, ErrNotFound
	}
	return s, nil
}

// Put заменяет секреты интеграции и перезаписывает файл
func (p *FileProvider) Put(_ context.Context, integrationID string, secrets map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	all, salt, err := p.load()
	if err != nil {
		return err
	}
	if salt == nil {
		salt = make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}
	all[integrationID] = secrets
	return p.store(all, salt)
}

// load возвращает пустой набор, если файла еще нет
func (p *FileProvider) load() (map[string]map[string]string, []byte, error) {
	raw, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]map[string]string{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}
	if env.Version != fileVersion {
		return nil, nil, fmt.Errorf("unsupported secrets file version %d", env.Version)
	}

	aead, err := chacha20poly1305.NewX(p.key(env.Salt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	plain, err := aead.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return nil, nil, ErrWrongPassphrase
	}

	all := map[string]map[string]string{}
	if err := json.Unmarshal(plain, &all); err != nil {
		return nil, nil, fmt.Errorf("failed to decode secrets: %w", err)
	}
	return all, env.Salt, nil
}

func (p *FileProvider) store(all map[string]map[string]string, salt []byte) error {
	plain, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("failed to encode secrets: %w", err)
	}

	aead, err := chacha20poly1305.NewX(p.key(salt))
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	raw, err := json.Marshal(envelope{
		Version: fileVersion,
		Salt:    salt,
		Nonce:   nonce,
		Data:    aead.Seal(nil, nonce, plain, nil),
	})
	if err != nil {
		return fmt.Errorf("failed to encode secrets file: %w", err)
	}

	// пишем во временный файл рядом, чтобы не оставить обрезанный файл при сбое
	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".secrets-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write secrets: %w", err)
	}
	if err := tmp.Chmod(filePermissions); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod secrets: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close secrets: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to replace secrets file: %w", err)
	}
	return nil
}

func (p *FileProvider) key(salt []byte) []byte {
	return argon2.IDKey(p.passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}
