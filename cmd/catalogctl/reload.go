package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/Nerzal/gocloak/v13"
	"github.com/abgdnv/catalog/internal/service"
	"github.com/spf13/cobra"
)

const clientSecretEnv = "CATALOGCTL_CLIENT_SECRET"

// tokenIssuer is the part of the Keycloak client used to obtain a service token.
type tokenIssuer interface {
	LoginClient(ctx context.Context, clientID, clientSecret, realm string, scopes ...string) (*gocloak.JWT, error)
}

var newIssuer = func(baseURL string) tokenIssuer {
	return gocloak.NewClient(baseURL)
}

type reloadOptions struct {
	baseURL      string
	idpURL       string
	realm        string
	clientID     string
	clientSecret string
}

func newReloadCmd(opts *options) *cobra.Command {
	var ro reloadOptions
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask the service to refetch the product collection",
		Long: "Calls the REST reload endpoint. When --idp-url is set a client credentials\n" +
			"token is requested from Keycloak and sent as a bearer token.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ro.clientSecret == "" {
				ro.clientSecret = os.Getenv(clientSecretEnv)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			token, err := ro.token(ctx)
			if err != nil {
				return err
			}
			loaded, err := ro.reload(ctx, token)
			if err != nil {
				return err
			}
			return printJSON(cmd, loaded)
		},
	}
	cmd.Flags().StringVar(&ro.baseURL, "http", "http://localhost:8080", "catalog REST base url")
	cmd.Flags().StringVar(&ro.idpURL, "idp-url", "", "Keycloak base url, empty sends no token")
	cmd.Flags().StringVar(&ro.realm, "realm", "catalog", "Keycloak realm")
	cmd.Flags().StringVar(&ro.clientID, "client-id", "catalogctl", "Keycloak client id")
	cmd.Flags().StringVar(&ro.clientSecret, "client-secret", "", "Keycloak client secret, defaults to $"+clientSecretEnv)
	return cmd
}

func (o reloadOptions) token(ctx context.Context) (string, error) {
	if o.idpURL == "" {
		return "", nil
	}
	jwt, err := newIssuer(o.idpURL).LoginClient(ctx, o.clientID, o.clientSecret, o.realm)
	if err != nil {
		return "", fmt.Errorf("failed to login to Keycloak: %w", err)
	}
	return jwt.AccessToken, nil
}

func (o reloadOptions) reload(ctx context.Context, token string) (*service.CatalogDto, error) {
	url := strings.TrimRight(o.baseURL, "/") + "/api/v1/catalog/reload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build reload request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reload catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to reload catalog: %s", resp.Status)
	}
	var loaded service.CatalogDto
	if err := json.NewDecoder(resp.Body).Decode(&loaded); err != nil {
		return nil, fmt.Errorf("failed to decode reload response: %w", err)
	}
	return &loaded, nil
}
