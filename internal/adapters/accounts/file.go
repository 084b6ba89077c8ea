// Package accounts reads signing keys and proxies from plain text files, one
// entry per line.
package accounts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// FileSource implements domain.AccountSource over two text files.
type FileSource struct {
	accountsPath string
	proxiesPath  string
	logger       logrus.FieldLogger
}

// NewFileSource creates a source. A nil logger discards diagnostics.
func NewFileSource(accountsPath, proxiesPath string, logger logrus.FieldLogger) *FileSource {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &FileSource{
		accountsPath: accountsPath,
		proxiesPath:  proxiesPath,
		logger:       logger,
	}
}

// LoadAccounts implements domain.AccountSource. A missing file is an error;
// malformed lines are dropped.
func (s *FileSource) LoadAccounts() ([]domain.Credential, error) {
	f, err := os.Open(s.accountsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open accounts file: %w", err)
	}
	defer f.Close()

	creds, dropped, err := ParseCredentials(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}
	if dropped > 0 {
		s.logger.WithField("dropped", dropped).Warn("Ignored malformed lines in accounts file")
	}
	return creds, nil
}

// LoadProxies implements domain.AccountSource. A missing file means no proxies.
func (s *FileSource) LoadProxies() ([]domain.ProxyRef, error) {
	f, err := os.Open(s.proxiesPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open proxies file: %w", err)
	}
	defer f.Close()

	var proxies []domain.ProxyRef
	err = scanLines(f, func(line string) {
		proxies = append(proxies, domain.ProxyRef(line))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read proxies file: %w", err)
	}
	return proxies, nil
}

// ParseCredentials normalizes every non-empty line to a "0x"-prefixed 64-hex key
// and reports how many lines were dropped as malformed.
func ParseCredentials(r io.Reader) ([]domain.Credential, int, error) {
	var (
		creds   []domain.Credential
		dropped int
	)
	err := scanLines(r, func(line string) {
		cred, ok := NormalizeKey(line)
		if !ok {
			dropped++
			return
		}
		creds = append(creds, cred)
	})
	return creds, dropped, err
}

// NormalizeKey adds the "0x" prefix when missing and checks the result is 32 bytes of hex.
func NormalizeKey(line string) (domain.Credential, bool) {
	key := strings.TrimSpace(line)
	if !strings.HasPrefix(key, "0x") && !strings.HasPrefix(key, "0X") {
		key = "0x" + key
	}
	key = "0x" + key[2:]
	if len(key) != 66 {
		return "", false
	}
	for _, c := range key[2:] {
		if !isHex(c) {
			return "", false
		}
	}
	return domain.Credential(key), true
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func scanLines(r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fn(line)
	}
	return scanner.Err()
}
