// Package settlement builds Pix copy-and-paste payloads (BR Code) so a
// debtor can settle up with a creditor directly from the app.
package settlement

import (
	"fmt"
	"strings"

	"splitpay/internal/models"
)

// EMV-MPM field IDs used by the static Pix BR Code.
const (
	idPayloadFormat         = "00"
	idMerchantAccountInfo   = "26"
	idMerchantCategoryCode  = "52"
	idTransactionCurrency   = "53"
	idTransactionAmount     = "54"
	idCountryCode           = "58"
	idMerchantName          = "59"
	idMerchantCity          = "60"
	idAdditionalDataField   = "62"
	idCRC                   = "63"
	idGUI                   = "00"
	idPixKey                = "01"
	idTxID                  = "05"
	pixGUI                  = "br.gov.bcb.pix"
	currencyBRL             = "986"
	countryBR               = "BR"
	categoryCodeUnspecified = "0000"
)

const (
	maxMerchantName = 25
	maxMerchantCity = 15
	maxTxID         = 25
)

// BRCode assembles a static Pix payload for the given key and amount in
// cents. txid may be empty, in which case the conventional "***"
// placeholder is used.
func BRCode(pixKey, merchantName, merchantCity string, amountCents int64, txid string) (string, error) {
	if strings.TrimSpace(pixKey) == "" {
		return "", models.NewValidationError("pix key is required")
	}
	if amountCents <= 0 {
		return "", models.NewValidationError("amount must be positive")
	}
	if merchantName == "" {
		return "", models.NewValidationError("merchant name is required")
	}
	if merchantCity == "" {
		merchantCity = "BRASILIA"
	}
	if txid == "" {
		txid = "***"
	}

	merchantName = truncate(merchantName, maxMerchantName)
	merchantCity = truncate(strings.ToUpper(merchantCity), maxMerchantCity)
	txid = truncate(txid, maxTxID)

	account := tlv(idGUI, pixGUI) + tlv(idPixKey, pixKey)
	additional := tlv(idTxID, txid)
	amount := fmt.Sprintf("%d.%02d", amountCents/100, amountCents%100)

	var b strings.Builder
	b.WriteString(tlv(idPayloadFormat, "01"))
	b.WriteString(tlv(idMerchantAccountInfo, account))
	b.WriteString(tlv(idMerchantCategoryCode, categoryCodeUnspecified))
	b.WriteString(tlv(idTransactionCurrency, currencyBRL))
	b.WriteString(tlv(idTransactionAmount, amount))
	b.WriteString(tlv(idCountryCode, countryBR))
	b.WriteString(tlv(idMerchantName, merchantName))
	b.WriteString(tlv(idMerchantCity, merchantCity))
	b.WriteString(tlv(idAdditionalDataField, additional))

	// The CRC covers everything up to and including its own ID and length.
	payload := b.String() + idCRC + "04"
	return payload + crc16Hex(payload), nil
}

// Validate re-checks the CRC16 suffix of a BR Code payload.
func Validate(payload string) error {
	if len(payload) < 8 {
		return models.NewValidationError("payload too short")
	}
	body, sum := payload[:len(payload)-4], payload[len(payload)-4:]
	if !strings.HasSuffix(body, idCRC+"04") {
		return models.NewValidationError("payload missing CRC field")
	}
	if crc16Hex(body) != sum {
		return models.NewValidationError("payload CRC mismatch")
	}
	return nil
}

func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// crc16Hex computes CRC16/CCITT-FALSE (poly 0x1021, init 0xFFFF) as four
// uppercase hex digits, the checksum Pix mandates.
func crc16Hex(data string) string {
	crc := uint16(0xFFFF)
	for i := 0; i < len(data); i++ {
		crc ^= uint16(data[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}
