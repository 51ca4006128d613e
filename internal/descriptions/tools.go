package descriptions

// Comprehensive tool descriptions with practical examples and use cases

const (
	// Core Tools
	StatementDetectDescription = `Open a bank or credit-card statement and locate personally identifying information on every page.

**When to use:** First step for any statement. Upload the document, let the heuristic locator find account numbers, card numbers, names, addresses, and contact details, and get a per-page summary of what was covered.

**Why it's useful:** Redaction rectangles are placed automatically before anything leaves the machine, so the follow-up tools only ever see covered pages.

**Examples:**
• Start a session: "Detect PII in statement-jan.pdf"
• Encrypted statement: "Detect PII in statement.pdf with password hunter2"

**Common workflows:**
1. Redaction Review: statement_detect → statement_redact → inspect covered pages
2. Full Export: statement_detect → statement_export → spreadsheet of transactions

**Best practices:** Review the covered pages with statement_redact before exporting; detection is heuristic and a manual pass catches what the rules miss.`

	StatementRedactDescription = `Bake the current redaction scene into opaque page images.

**When to use:** After statement_detect, to inspect exactly what will leave the machine, or to capture the redacted pages as PNG files.

**Why it's useful:** Every rectangle, automatic and manual, is flattened into fully opaque ink. What you see in the result is byte-for-byte what the extraction provider receives.

**Examples:**
• Visual check: "Show me the redacted pages before export"
• Archival: "Produce redacted PNGs of statement-jan.pdf"

**Common workflows:**
1. Pre-export Review: statement_detect → statement_redact → statement_export
2. Redacted Archive: statement_detect → statement_redact → store the PNGs

**Best practices:** Overlapping rectangles are safe; covered pixels never survive the bake regardless of rectangle order.`

	StatementExtractDescription = `Send the redacted pages to the configured vision model and return the transaction rows.

**When to use:** After detection (and any manual review) when you want the structured transactions without writing a spreadsheet.

**Why it's useful:** Only baked, redacted bitmaps are uploaded. Pages travel in small batches with provider fallback and automatic retry on rate limits.

**Examples:**
• Quick look: "Extract the transactions from the open statement"
• Pipeline input: "Get the transaction rows as JSON for my budgeting script"

**Common workflows:**
1. Structured Data: statement_detect → statement_extract → feed rows downstream
2. Verification: statement_extract → compare against statement_export output

**Best practices:** An empty result is reported distinctly from a transport failure; re-run with different pages before assuming the provider is down.`

	StatementExportDescription = `Run the full pipeline: bake redacted pages, extract transactions, and write a spreadsheet.

**When to use:** The normal end of a session. Produces an XLSX of the extracted rows and, when a host embedding is attached, hands the rows to it.

**Why it's useful:** One call covers composition, extraction, export, and host delivery. Columns that are empty across every row are hidden so the sheet stays readable.

**Examples:**
• Standard export: "Export the open statement to /statements/jan.xlsx"
• Embedded use: "Export and deliver the rows to the host page"

**Common workflows:**
1. Monthly Bookkeeping: statement_detect → review → statement_export
2. Host Embedding: statement_detect → statement_export → host receives transactions

**Best practices:** A missing host never fails the export; the spreadsheet is always written.`

	// Utility Tools
	ServerInfoDescription = `Get real-time server status, available tools, and usage guidance.

**When to use:** Starting work with the redaction server, troubleshooting, or checking the active configuration.

**Why it's useful:** Reports the statement directory, size limits, detection settings, and the state of the current session in one call.

**Examples:**
• Orientation: "What tools does this server offer?"
• Session check: "Is a document currently open, and how many rectangles does it carry?"

**Best practices:** Call first when unsure about the server state; it is cheap and side-effect free.`
)

// UsageGuidance provides the overall workflow description shown by the
// server info tool.
const UsageGuidance = `💡 Usage guidance:

The server holds at most one statement session at a time. Open a
document with statement_detect; the locator reconstructs each page's
text lines and covers account numbers, card numbers, names, addresses,
emails, phone numbers, and dates of birth with redaction rectangles.

Inspect the result with statement_redact. Nothing leaves the machine
until you call statement_extract or statement_export, and those only
ever upload the baked, redacted page images.

Encrypted documents: pass the password argument to statement_detect.
A wrong or missing password is reported as password-required; retry
with the correct one.

Typical session:
1. statement_detect path=statement.pdf
2. statement_redact (review the covered pages)
3. statement_export output=transactions.xlsx`
