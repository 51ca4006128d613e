package detect

import "github.com/inkveil/inkveil/internal/scene"

// Config carries the tunable vocabulary and thresholds for the rule
// cascade. Every list is injectable so locale-specific deployments can
// retune matching without code changes; DefaultConfig returns the
// vocabulary the detector ships with.
type Config struct {
	// TopRegionFraction is the fraction of page height below which a
	// line counts as being in the top region.
	TopRegionFraction float64

	// RectPadding inflates every synthesized rectangle on all sides so
	// the fill overshoots glyph edges.
	RectPadding float64

	// LabelKeywords trigger the unconditional label-value rule when
	// followed by a colon.
	LabelKeywords []string

	// CardLabels and AccountLabels gate the card/account number rules
	// outside the top region.
	CardLabels    []string
	AccountLabels []string

	// IDLabels gate the national-identifier rule anywhere on the page.
	IDLabels []string

	// EmailLabels, PhoneLabels and DOBLabels gate their respective
	// rules outside the top region.
	EmailLabels []string
	PhoneLabels []string
	DOBLabels   []string

	// TableHeaderTokens and TransactionKeywords mark a dated line as a
	// transaction row, which suppresses the number rules.
	TableHeaderTokens   []string
	TransactionKeywords []string

	// NameStoplist rejects capitalized-word sequences that are banking
	// vocabulary rather than personal names.
	NameStoplist []string

	// BankHeaderTokens exclude institutional header lines from the
	// whole-line address heuristic.
	BankHeaderTokens []string

	// StreetTokens, Provinces and Countries feed the whole-line
	// address heuristic.
	StreetTokens []string
	Provinces    []string
	Countries    []string
}

// DefaultConfig returns the stock detection vocabulary.
func DefaultConfig() Config {
	return Config{
		TopRegionFraction: 0.28,
		RectPadding:       scene.DefaultRectPad,

		LabelKeywords: []string{
			"name", "account holder", "customer name", "customer id",
			"address", "email", "e-mail", "phone", "mobile", "telephone",
			"card number", "card no", "account number", "account no",
			"a/c no", "iban", "sort code", "ifsc", "swift",
			"pan", "ssn", "sin", "national insurance",
			"date of birth", "dob", "member since", "customer since",
		},

		CardLabels: []string{
			"card number", "card no", "credit card", "debit card", "card",
		},
		AccountLabels: []string{
			"account number", "account no", "a/c", "acct", "account", "iban",
		},
		IDLabels: []string{
			"ssn", "social security", "sin", "social insurance",
			"national insurance", "ni number", "tax id", "tin",
			"pan", "aadhaar", "aadhar",
		},
		EmailLabels: []string{"email", "e-mail", "mail id"},
		PhoneLabels: []string{
			"phone", "tel", "telephone", "mobile", "cell", "contact",
		},
		DOBLabels: []string{"date of birth", "dob", "birth date"},

		TableHeaderTokens: []string{
			"date", "description", "particulars", "narration", "details",
			"debit", "credit", "withdrawal", "deposit", "balance", "amount",
			"cheque", "ref no", "value date",
		},
		TransactionKeywords: []string{
			"upi", "neft", "imps", "rtgs", "ach", "pos", "atm", "emi",
			"txn", "transfer", "payment", "purchase", "refund", "reversal",
			"interest", "fee", "charge", "chq", "cheque", "debit", "credit",
			"withdrawal", "deposit", "standing order", "direct debit",
		},

		NameStoplist: []string{
			"account", "statement", "bank", "credit", "debit", "card",
			"balance", "payment", "minimum", "due", "date", "total",
			"interest", "limit", "available", "previous", "new", "billing",
			"period", "summary", "annual", "rate", "cash", "advance",
			"purchases", "rewards", "points", "customer", "service",
			"page", "visa", "mastercard", "amex",
		},

		BankHeaderTokens: []string{
			"bank", "statement", "branch", "customer service", "page",
			"www", ".com", "toll free", "helpline", "member fdic",
		},

		StreetTokens: []string{
			"street", "st.", "road", "rd.", "avenue", "ave", "lane", "ln",
			"drive", "dr.", "boulevard", "blvd", "court", "crescent",
			"apt", "apartment", "suite", "unit", "floor", "block",
			"sector", "house", "nagar", "colony",
		},
		Provinces: []string{
			// Canadian provinces and a selection of US state names plus
			// the two-letter abbreviations that show up in statement
			// address blocks.
			"ontario", "quebec", "british columbia", "alberta", "manitoba",
			"saskatchewan", "nova scotia", "new brunswick", "newfoundland",
			"prince edward island", "yukon", "nunavut",
			"on", "qc", "bc", "ab", "mb", "sk", "ns", "nb", "nl", "pe",
			"california", "texas", "new york", "florida", "illinois",
			"washington", "massachusetts", "ca", "tx", "ny", "fl", "il",
			"wa", "ma", "maharashtra", "karnataka", "delhi", "telangana",
		},
		Countries: []string{
			"canada", "united states", "usa", "united kingdom", "india",
			"australia", "ireland", "new zealand", "singapore",
		},
	}
}
