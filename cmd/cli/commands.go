package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/smallwat3r/secretdrop/internal/domain"
	"github.com/smallwat3r/secretdrop/internal/utility"
)

func newCreateCmd(baseURL func() string) *cobra.Command {
	var (
		expire  int64
		destroy bool
		files   []string
		key     string
	)

	cmd := &cobra.Command{
		Use:   "create <message>",
		Short: "Encrypt and store a message, printing its link and key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = uuid.NewString()
			}

			sealed, err := utility.Seal([]byte(args[0]), key)
			if err != nil {
				return fmt.Errorf("encrypt message: %w", err)
			}

			var bundle []byte
			if len(files) > 0 {
				bundle, err = sealFiles(files, key)
				if err != nil {
					return err
				}
			}

			link, err := newClient(baseURL()).submit(cmd.Context(), sealed, expire, destroy, bundle)
			if err != nil {
				return fmt.Errorf("create secret: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Secret created!")
			fmt.Fprintln(out, "URL:", link)
			fmt.Fprintln(out, "Key:", key)
			return nil
		},
	}

	cmd.Flags().Int64Var(&expire, "expire", 3600, "lifetime in seconds")
	cmd.Flags().BoolVar(&destroy, "destroy", false, "destroy the secret after the first read")
	cmd.Flags().StringArrayVar(&files, "file", nil, "attach a file (repeatable)")
	cmd.Flags().StringVar(&key, "key", "", "encryption key (random if empty)")
	return cmd
}

// sealFiles encrypts each file and packs them into the JSON bundle the
// server stores verbatim.
func sealFiles(paths []string, key string) ([]byte, error) {
	bundle := make([]domain.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		sealed, err := utility.Seal(data, key)
		if err != nil {
			return nil, fmt.Errorf("encrypt %s: %w", p, err)
		}
		bundle = append(bundle, domain.File{
			Name:    filepath.Base(p),
			Content: sealed,
			Size:    int64(len(data)),
		})
	}
	return json.Marshal(bundle)
}

func newReadCmd(baseURL func() string) *cobra.Command {
	var (
		key    string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "read <url-or-id>",
		Short: "Fetch and decrypt a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, id := parseTarget(args[0], baseURL())
			c := newClient(base)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			// files first, a destroy-on-read message takes them with it
			var files []domain.File
			if outDir != "" {
				var err error
				files, err = c.getFiles(ctx, id)
				if err != nil {
					return fmt.Errorf("fetch files: %w", err)
				}
			}

			res, err := c.get(ctx, id)
			if err != nil {
				return fmt.Errorf("fetch secret: %w", err)
			}
			if res.Info == "" && res.Msg == domain.NotFoundMessage {
				return errors.New("secret not found: it was destroyed or has expired")
			}

			plain, err := utility.Open(res.Msg, key)
			if err != nil {
				if !errors.Is(err, utility.ErrOpenFailed) {
					return fmt.Errorf("decrypt secret: %w", err)
				}
				att, ferr := c.failAttempt(ctx, id)
				if ferr != nil {
					return fmt.Errorf("wrong key; report attempt: %w", ferr)
				}
				if att.Error != "" {
					return errors.New("wrong key; too many attempts, the secret has been destroyed")
				}
				return fmt.Errorf("wrong key; %d attempts left", att.AttemptsLeft)
			}

			fmt.Fprintln(out, string(plain))
			if res.DestroyOnRead {
				fmt.Fprintln(out, "(this secret has now been destroyed)")
			}

			if outDir == "" || len(files) == 0 {
				return nil
			}
			for _, f := range files {
				data, err := utility.Open(f.Content, key)
				if err != nil {
					return fmt.Errorf("decrypt %s: %w", f.Name, err)
				}
				dst := filepath.Join(outDir, filepath.Base(f.Name))
				if err := os.WriteFile(dst, data, 0o600); err != nil {
					return fmt.Errorf("write %s: %w", dst, err)
				}
				fmt.Fprintln(out, "Saved", dst)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "decryption key")
	cmd.Flags().StringVar(&outDir, "out", "", "directory to save attached files into")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newDeleteCmd(baseURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <url-or-id>",
		Short: "Destroy a secret before it expires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, id := parseTarget(args[0], baseURL())
			res, status, err := newClient(base).delete(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("delete secret: %w", err)
			}
			switch status {
			case http.StatusOK:
				fmt.Fprintln(cmd.OutOrStdout(), "Secret deleted.")
				return nil
			case http.StatusNotFound:
				return errors.New("secret not found")
			case http.StatusTooManyRequests:
				return errors.New("too many delete attempts, try again later")
			default:
				return fmt.Errorf("delete secret: status %d: %s", status, res.Error)
			}
		},
	}
}

// parseTarget accepts either a bare id or a full secret link. A link
// overrides the configured server.
func parseTarget(arg, fallback string) (base, id string) {
	if !strings.Contains(arg, "://") {
		return fallback, arg
	}
	u, err := url.Parse(arg)
	if err != nil {
		return fallback, arg
	}
	return u.Scheme + "://" + u.Host, path.Base(strings.TrimRight(u.Path, "/"))
}
