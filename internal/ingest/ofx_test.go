package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250301120000[0:GMT]
<DTEND>20250331120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250314120000[0:GMT]
<TRNAMT>-42.17
<FITID>2025031401
<NAME>WM SUPERCENTER #4521
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250320120000[0:GMT]
<TRNAMT>-15.49
<FITID>2025032001
<NAME>DEBIT
<MEMO>NETFLIX.COM 866-579-7172
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250325120000[0:GMT]
<TRNAMT>120.00
<FITID>2025032501
<NAME>DELTA AIR REFUND
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20250331120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20250301120000[0:GMT]
<DTEND>20250331120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250310120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2025031001
<NAME>AMZN MKTP US*1A2B3
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20250331120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
	}{
		{
			name:          "valid bank statement",
			ofxData:       sampleBankOFX,
			expectedCount: 3,
		},
		{
			name:          "valid credit card statement",
			ofxData:       sampleCreditCardOFX,
			expectedCount: 1,
		},
		{
			name:          "invalid OFX data",
			ofxData:       "not valid OFX",
			expectedError: true,
		},
		{
			name:          "empty OFX",
			ofxData:       "",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewOFXParser()
			transactions, err := parser.ParseFile(context.Background(), strings.NewReader(tt.ofxData))

			if tt.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, transactions, tt.expectedCount)
		})
	}
}

func TestParseBankTransactions(t *testing.T) {
	parser := NewOFXParser()

	transactions, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, transactions, 3)

	// Debits flip sign so spend is positive.
	tx1 := transactions[0]
	assert.Equal(t, "2025031401", tx1.ID)
	assert.Equal(t, "WM SUPERCENTER #4521", tx1.RawDescription)
	assert.InDelta(t, 42.17, tx1.Amount, 0.001)
	assert.Equal(t, "1234567890", tx1.AccountID)
	assert.NotEmpty(t, tx1.Hash)
	assert.Equal(t, 2025, tx1.Date.Year())
	assert.Equal(t, time.March, tx1.Date.Month())
	assert.Equal(t, 14, tx1.Date.Day())

	// Generic NAME falls back to MEMO.
	tx2 := transactions[1]
	assert.Equal(t, "NETFLIX.COM 866-579-7172", tx2.RawDescription)
	assert.InDelta(t, 15.49, tx2.Amount, 0.001)

	// Credits come out negative.
	tx3 := transactions[2]
	assert.Equal(t, "DELTA AIR REFUND", tx3.RawDescription)
	assert.InDelta(t, -120.00, tx3.Amount, 0.001)
}

func TestParseCreditCardTransactions(t *testing.T) {
	parser := NewOFXParser()

	transactions, err := parser.ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, transactions, 1)

	tx := transactions[0]
	assert.Equal(t, "CC2025031001", tx.ID)
	assert.Equal(t, "AMZN MKTP US*1A2B3", tx.RawDescription)
	assert.InDelta(t, 45.99, tx.Amount, 0.001)
	assert.Equal(t, "4111111111111111", tx.AccountID)
}

func TestPreprocessOFX(t *testing.T) {
	parser := NewOFXParser()

	t.Run("strips leading whitespace", func(t *testing.T) {
		got := parser.preprocessOFX("\n\n  OFXHEADER:100")
		assert.True(t, strings.HasPrefix(got, "OFXHEADER:100"))
	})

	t.Run("uppercases severity", func(t *testing.T) {
		got := parser.preprocessOFX("<SEVERITY>Info</SEVERITY>")
		assert.Equal(t, "<SEVERITY>INFO</SEVERITY>", got)
	})

	t.Run("closes bare SGML tags", func(t *testing.T) {
		got := parser.preprocessOFX("<STMTTRN\n<TRNTYPE>DEBIT")
		assert.Equal(t, "<STMTTRN>\n<TRNTYPE>DEBIT", got)
	})
}

func TestIsGenericDescription(t *testing.T) {
	assert.True(t, isGenericDescription("DEBIT"))
	assert.True(t, isGenericDescription("Card Purchase"))
	assert.True(t, isGenericDescription("POS TRANSACTION"))
	assert.False(t, isGenericDescription("NETFLIX.COM"))
	assert.False(t, isGenericDescription("WM SUPERCENTER #4521"))
}

func TestGetAccounts(t *testing.T) {
	parser := NewOFXParser()

	accounts, err := parser.GetAccounts(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	assert.Contains(t, accounts, "1234567890")

	accounts, err = parser.GetAccounts(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	assert.Contains(t, accounts, "4111111111111111")
}
