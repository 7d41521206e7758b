package nodedist

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// maxShasumsSize bounds the in-memory SHASUMS256.txt and signature downloads
const maxShasumsSize = 1 << 20

// LoadKeyring reads an OpenPGP keyring from disk, armored or binary.
func LoadKeyring(path string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return ParseKeyring(data)
}

// ParseKeyring parses an armored or binary OpenPGP keyring.
func ParseKeyring(data []byte) (openpgp.EntityList, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		// Try reading as non-armored keyring
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// verifySignature checks a detached signature (armored or binary) over data
func verifySignature(keyring openpgp.EntityList, data, signature []byte) error {
	_, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	if err != nil {
		// Try non-armored signature
		_, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

// findChecksum finds the checksum for a specific filename in SHASUMS256.txt content
// Format: "abc123def456  filename.tar.gz"
func findChecksum(shasums []byte, filename string) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(shasums))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		// Binary-mode lines prefix the name with '*'
		name := strings.TrimPrefix(parts[1], "*")
		if name == filename || filepath.Base(name) == filename {
			sum := strings.ToLower(parts[0])
			if _, err := hex.DecodeString(sum); err != nil || len(sum) != 64 {
				return "", fmt.Errorf("malformed checksum for %s: %q", filename, parts[0])
			}
			return sum, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}

// readLimited reads at most maxShasumsSize bytes and fails if there is more
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxShasumsSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxShasumsSize {
		return nil, fmt.Errorf("response exceeds %d bytes", maxShasumsSize)
	}
	return data, nil
}
