package cmd

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/stagegate/stagegate-go/lib/client"
	"github.com/stagegate/stagegate-go/lib/client/types"
	"github.com/stagegate/stagegate-go/statecache"
)

// changing any of these will break keyring compatibility
const (
	keyringServiceName             = "stagegate"
	keyringLibSecretCollectionName = "stagegate"
	keyringFileDir                 = "~/.stagegate/"
)

func newSDKClient() (*client.Client, error) {
	return client.NewClient(host, port, nil)
}

func openKeyring() (keyring.Keyring, error) {
	var allowedBackends []keyring.BackendType
	if backend != "" {
		allowedBackends = append(allowedBackends, keyring.BackendType(backend))
	}

	fileDir, err := homedir.Expand(keyringFileDir)
	if err != nil {
		return nil, errors.Wrap(err, "expanding keyring file dir")
	}

	return keyring.Open(keyring.Config{
		AllowedBackends:          allowedBackends,
		KeychainTrustApplication: true,
		ServiceName:              keyringServiceName,
		LibSecretCollectionName:  keyringLibSecretCollectionName,
		FileDir:                  fileDir,
		FilePasswordFunc:         keyringPrompt,
	})
}

func openCache() (*statecache.Store, error) {
	kr, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return statecache.New(kr), nil
}

// storeToken takes the token out of circulation and caches it for the
// next invocation.
func storeToken(cache *statecache.Store, username string, token *client.Token) error {
	return cache.PutToken(host, username, token.Export())
}

func loadToken(cache *statecache.Store, username string) (*client.Token, error) {
	encoded, err := cache.GetToken(host, username)
	if err == statecache.ErrNotFound {
		return nil, fmt.Errorf("no cached session for %s; log in first", username)
	}
	if err != nil {
		return nil, err
	}
	return client.ImportToken(encoded)
}

func promptPassword(label string) (types.Password, error) {
	for {
		raw, err := prompt(label, true)
		if err != nil {
			return types.Password{}, err
		}
		password, err := types.ParsePassword(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			continue
		}
		return password, nil
	}
}

func promptOtp(label string) (types.SimpleOtp, error) {
	for {
		raw, err := prompt(label, false)
		if err != nil {
			return types.SimpleOtp{}, err
		}
		otp, err := types.ParseSimpleOtp(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			continue
		}
		return otp, nil
	}
}

func promptTotp(label string) (types.Totp, error) {
	for {
		raw, err := prompt(label, false)
		if err != nil {
			return types.Totp{}, err
		}
		code, err := types.ParseTotp(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			continue
		}
		return code, nil
	}
}

func promptMfaKind(label string) (types.MfaKind, error) {
	for {
		raw, err := prompt(label+" (totp/sms/email)", false)
		if err != nil {
			return "", err
		}
		kind, err := types.ParseMfaKind(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			continue
		}
		return kind, nil
	}
}
