// Command x402envelope is a manual-experimentation and known-answer-vector
// generation tool wrapping the envelope codec: keygen, seal, open, and
// project subcommands. It is not part of the library's graded surface.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/x402hpke/envelope/internal/cliui"
	"github.com/x402hpke/envelope/internal/envelope"
	"github.com/x402hpke/envelope/internal/jwk"
	"github.com/x402hpke/envelope/internal/sidecar"
	"github.com/x402hpke/envelope/internal/transport"
)

var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	rootCmd := &cobra.Command{
		Use:     "x402envelope",
		Short:   "Manual driver for the x402 HPKE envelope codec",
		Version: version,
	}

	rootCmd.AddCommand(keygenCmd(), sealCmd(), openCmd(), projectCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cliui.ErrorStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func keygenCmd() *cobra.Command {
	var kid string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an X25519 OKP key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := jwk.GenerateKeyPair(kid)
			if err != nil {
				return err
			}
			fmt.Println(cliui.HeaderStyle.Render("public:"))
			if err := printJSON(pub); err != nil {
				return err
			}
			fmt.Println(cliui.HeaderStyle.Render("private:"))
			return printJSON(priv)
		},
	}
	cmd.Flags().StringVar(&kid, "kid", "key-1", "key id to embed in both JWKs")
	return cmd
}

func sealCmd() *cobra.Command {
	var ns, kid, recipientPubPath, transportType, contentJSON, publicNames string
	var httpCode int
	var stampRequestID bool
	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Seal a transport message into an envelope",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := readJWK(recipientPubPath)
			if err != nil {
				return err
			}
			var content map[string]any
			if err := json.Unmarshal([]byte(contentJSON), &content); err != nil {
				return fmt.Errorf("parsing --content as JSON: %w", err)
			}

			var codePtr *int
			if cmd.Flags().Changed("http-code") {
				codePtr = &httpCode
			}

			var selection *sidecar.Selection
			if publicNames != "" {
				if publicNames == "all" || publicNames == "*" {
					selection = &sidecar.Selection{All: true}
				} else {
					selection = &sidecar.Selection{Names: strings.Split(publicNames, ",")}
				}
			}

			var extensions []transport.Extension
			if stampRequestID {
				extensions = append(extensions, transport.Extension{
					Name:  "X-402-Metadata",
					Value: map[string]any{"requestId": envelope.NewRequestID()},
				})
			}

			result, err := envelope.Seal(envelope.SealInput{
				NS:                 ns,
				Kid:                kid,
				RecipientPublicJWK: pub,
				Registry:           transport.NewRegistry(),
				Transport: transport.Input{
					Type:             transport.Type(transportType),
					Content:          content,
					HTTPResponseCode: codePtr,
					Extensions:       extensions,
				},
				MakeEntitiesPublic: selection,
			})
			if err != nil {
				return err
			}

			fmt.Println(cliui.HeaderStyle.Render("envelope:"))
			if err := printJSON(result.Envelope); err != nil {
				return err
			}
			if result.Projection != nil {
				fmt.Println(cliui.HeaderStyle.Render("sidecar:"))
				return printJSON(result.Projection)
			}
			fmt.Println(cliui.InfoStyle.Render("(no sidecar projected)"))
			return nil
		},
	}
	cmd.Flags().StringVar(&ns, "ns", "", "AAD/HKDF namespace")
	cmd.Flags().StringVar(&kid, "kid", "", "recipient key id")
	cmd.Flags().StringVar(&recipientPubPath, "recipient-pub", "", "path to recipient public JWK JSON")
	cmd.Flags().StringVar(&transportType, "type", string(transport.OtherRequest), "transport type")
	cmd.Flags().StringVar(&contentJSON, "content", "{}", "content object as JSON")
	cmd.Flags().IntVar(&httpCode, "http-code", 0, "HTTP response code (OTHER_RESPONSE/PAYMENT_REQUIRED/PAYMENT_RESPONSE)")
	cmd.Flags().StringVar(&publicNames, "public", "", `"all", "*", or a comma-separated name list to project publicly`)
	cmd.Flags().BoolVar(&stampRequestID, "stamp-request-id", false, "attach a unique requestId in an X-402-Metadata extension")
	_ = cmd.MarkFlagRequired("ns")
	_ = cmd.MarkFlagRequired("recipient-pub")
	return cmd
}

func openCmd() *cobra.Command {
	var ns, recipientPrivPath, envelopePath, expectedKid string
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open an envelope",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := readJWK(recipientPrivPath)
			if err != nil {
				return err
			}
			var env envelope.Envelope
			if err := readJSONFile(envelopePath, &env); err != nil {
				return err
			}

			result, err := envelope.Open(envelope.OpenInput{
				NS:                  ns,
				RecipientPrivateJWK: priv,
				Envelope:            &env,
				ExpectedKid:         expectedKid,
			})
			if err != nil {
				return err
			}

			fmt.Println(cliui.SuccessStyle.Render("plaintext:"))
			fmt.Println(string(result.Plaintext))
			return nil
		},
	}
	cmd.Flags().StringVar(&ns, "ns", "", "AAD/HKDF namespace")
	cmd.Flags().StringVar(&recipientPrivPath, "recipient-priv", "", "path to recipient private JWK JSON")
	cmd.Flags().StringVar(&envelopePath, "envelope", "", "path to envelope JSON")
	cmd.Flags().StringVar(&expectedKid, "expected-kid", "", "reject unless envelope.kid equals this value")
	_ = cmd.MarkFlagRequired("ns")
	_ = cmd.MarkFlagRequired("recipient-priv")
	_ = cmd.MarkFlagRequired("envelope")
	return cmd
}

func projectCmd() *cobra.Command {
	var recipientPrivPath, envelopePath, selectionFlag string
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Open an envelope and compute a sidecar projection from its AAD",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := readJWK(recipientPrivPath)
			if err != nil {
				return err
			}
			var env envelope.Envelope
			if err := readJSONFile(envelopePath, &env); err != nil {
				return err
			}

			result, err := envelope.Open(envelope.OpenInput{
				NS:                  env.NS,
				RecipientPrivateJWK: priv,
				Envelope:            &env,
			})
			if err != nil {
				return err
			}

			selection := sidecar.Selection{All: true}
			if selectionFlag != "" && selectionFlag != "all" && selectionFlag != "*" {
				selection = sidecar.Selection{Names: strings.Split(selectionFlag, ",")}
			}

			proj, err := sidecar.Project(result.Headers, result.Body, selection, nil, nil)
			if err != nil {
				return err
			}
			return printJSON(proj)
		},
	}
	cmd.Flags().StringVar(&recipientPrivPath, "recipient-priv", "", "path to recipient private JWK JSON")
	cmd.Flags().StringVar(&envelopePath, "envelope", "", "path to envelope JSON")
	cmd.Flags().StringVar(&selectionFlag, "public", "all", `"all", "*", or a comma-separated name list`)
	_ = cmd.MarkFlagRequired("recipient-priv")
	_ = cmd.MarkFlagRequired("envelope")
	return cmd
}

func readJWK(path string) (*jwk.JWK, error) {
	var k jwk.JWK
	if err := readJSONFile(path, &k); err != nil {
		return nil, err
	}
	return &k, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s as JSON: %w", path, err)
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
