package services

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

var maxEPCAmount = decimal.RequireFromString("999999999.99")

// PaymentRequest is the data of an EPC (SEPA credit transfer) QR code.
type PaymentRequest struct {
	Name   string
	IBAN   string
	Amount decimal.Decimal
	Text   string
}

// generateEPCQRData builds the EPC069-12 payload (version 002, no BIC).
func generateEPCQRData(req PaymentRequest) (string, error) {
	iban := normalizeIBAN(req.IBAN)
	if err := validateIBAN(iban); err != nil {
		return "", err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", fmt.Errorf("account holder is required")
	}
	amount := req.Amount.Round(2)
	if amount.LessThan(decimal.New(1, -2)) || amount.GreaterThan(maxEPCAmount) {
		return "", fmt.Errorf("amount %s outside the EPC range", amount.StringFixed(2))
	}

	qrParts := []string{
		"BCD",                         // Service Tag
		"002",                         // Version
		"1",                           // Character set: UTF-8
		"SCT",                         // Identification
		"",                            // BIC, optional in version 002
		truncate(name, 70),            // Beneficiary name
		iban,                          // Beneficiary account
		"EUR" + amount.StringFixed(2), // Amount
		"",                            // Purpose
		"",                            // Structured reference
		truncate(req.Text, 140),       // Unstructured remittance
	}
	return strings.Join(qrParts, "\n"), nil
}

// writeQRImage encodes data as a PNG in a new file in dir. The caller owns
// the file.
func writeQRImage(data, dir string) (string, error) {
	png, err := qrcode.Encode(data, qrcode.Medium, 280)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	f, err := os.CreateTemp(dir, "goe_qr_*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create QR file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(png); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write QR file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write QR file: %w", err)
	}
	return path, nil
}

func normalizeIBAN(iban string) string {
	return strings.ToUpper(strings.Join(strings.Fields(iban), ""))
}

// validateIBAN checks length, country prefix and the mod 97 checksum.
func validateIBAN(iban string) error {
	if len(iban) < 15 || len(iban) > 34 {
		return fmt.Errorf("invalid IBAN length %d", len(iban))
	}
	if iban[0] < 'A' || iban[0] > 'Z' || iban[1] < 'A' || iban[1] > 'Z' {
		return fmt.Errorf("invalid IBAN country code %q", iban[:2])
	}

	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, c := range rearranged {
		switch {
		case c >= '0' && c <= '9':
			digits.WriteRune(c)
		case c >= 'A' && c <= 'Z':
			fmt.Fprintf(&digits, "%d", c-'A'+10)
		default:
			return fmt.Errorf("invalid IBAN character %q", c)
		}
	}

	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok || new(big.Int).Mod(n, big.NewInt(97)).Int64() != 1 {
		return fmt.Errorf("IBAN checksum mismatch")
	}
	return nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
