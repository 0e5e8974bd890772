// Command x402envelopetest drives a full roundtrip across every transport
// type, several sidecar selections, and a streaming-chunk session, for
// manual verification outside the unit test suite.
package main

import (
	"fmt"
	"os"

	"github.com/x402hpke/envelope/internal/cliui"
	"github.com/x402hpke/envelope/internal/envelope"
	"github.com/x402hpke/envelope/internal/jwk"
	"github.com/x402hpke/envelope/internal/sidecar"
	"github.com/x402hpke/envelope/internal/streamchunk"
	"github.com/x402hpke/envelope/internal/transport"
)

// Report is the outcome of one roundtrip check.
type Report struct {
	Name string
	Pass bool
	Err  error
}

func main() {
	reports := RunE2E()

	failed := 0
	for _, r := range reports {
		if r.Pass {
			fmt.Println(cliui.SuccessStyle.Render("PASS"), r.Name)
			continue
		}
		failed++
		fmt.Println(cliui.ErrorStyle.Render("FAIL"), r.Name+":", r.Err)
	}

	fmt.Printf("%d/%d checks passed\n", len(reports)-failed, len(reports))
	if failed > 0 {
		os.Exit(1)
	}
}

// RunE2E exercises seal/open across every transport type plus a streaming
// session, returning one Report per check.
func RunE2E() []Report {
	var reports []Report
	check := func(name string, fn func() error) {
		err := fn()
		reports = append(reports, Report{Name: name, Pass: err == nil, Err: err})
	}

	pub, priv, err := jwk.GenerateKeyPair("smoke-1")
	if err != nil {
		return []Report{{Name: "keygen", Pass: false, Err: err}}
	}
	reg := transport.NewRegistry()

	roundtrip := func(in transport.Input, selection *sidecar.Selection) error {
		sealed, err := envelope.Seal(envelope.SealInput{
			NS:                 "smoketest",
			Kid:                "smoke-1",
			RecipientPublicJWK: pub,
			Registry:           reg,
			Transport:          in,
			MakeEntitiesPublic: selection,
		})
		if err != nil {
			return fmt.Errorf("seal: %w", err)
		}

		var sc *sidecar.VerifyInput
		if sealed.Projection != nil {
			sc = &sidecar.VerifyInput{
				PublicHeaders: sealed.Projection.PublicHeaders,
				PublicBody:    sealed.Projection.PublicBody,
			}
		}

		_, err = envelope.Open(envelope.OpenInput{
			NS:                  "smoketest",
			RecipientPrivateJWK: priv,
			Envelope:            sealed.Envelope,
			Sidecar:             sc,
		})
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		return nil
	}

	check("roundtrip: OTHER_REQUEST private", func() error {
		return roundtrip(transport.Input{Type: transport.OtherRequest, Content: map[string]any{"action": "test"}}, nil)
	})

	check("roundtrip: PAYMENT with public header", func() error {
		return roundtrip(transport.Input{
			Type:    transport.Payment,
			Content: map[string]any{"payload": map[string]any{"invoiceId": "inv_1"}},
		}, &sidecar.Selection{Names: []string{"X-PAYMENT"}})
	})

	code402 := 402
	check("roundtrip: PAYMENT_REQUIRED all-public", func() error {
		return roundtrip(transport.Input{
			Type:             transport.PaymentRequired,
			Content:          map[string]any{"need": true},
			HTTPResponseCode: &code402,
		}, &sidecar.Selection{All: true})
	})

	codeOK := 200
	check("roundtrip: PAYMENT_RESPONSE", func() error {
		return roundtrip(transport.Input{
			Type:             transport.PaymentResponse,
			Content:          map[string]any{"payload": map[string]any{"settled": true}},
			HTTPResponseCode: &codeOK,
		}, nil)
	})

	code500 := 500
	check("roundtrip: OTHER_RESPONSE", func() error {
		return roundtrip(transport.Input{
			Type:             transport.OtherResponse,
			Content:          map[string]any{"ok": false},
			HTTPResponseCode: &code500,
		}, nil)
	})

	check("streaming: chunk session with limiter", func() error {
		limiter := streamchunk.NewLimiter(10, 1024)
		key := make([]byte, 32)
		prefix := make([]byte, 16)
		for i := range prefix {
			prefix[i] = byte(i)
		}

		ct, seq, err := limiter.Seal(key, prefix, []byte("chunk one"), []byte("session-aad"))
		if err != nil {
			return fmt.Errorf("seal chunk: %w", err)
		}
		pt, err := limiter.Open(key, prefix, seq, ct, []byte("session-aad"))
		if err != nil {
			return fmt.Errorf("open chunk: %w", err)
		}
		if string(pt) != "chunk one" {
			return fmt.Errorf("chunk plaintext mismatch: got %q", pt)
		}
		return nil
	})

	return reports
}
