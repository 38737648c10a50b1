package claude

import "fmt"

// recognizePrompt builds the transcription instruction. The reflow variant
// joins original line breaks into flowing paragraphs; the literal variant
// preserves the scanned layout. Both forbid translation and commentary.
func recognizePrompt(langName string, reflow bool) string {
	if reflow {
		return fmt.Sprintf(`Transcribe ALL the text from this scanned document image.

Instructions:
- This is a scanned document in %s
- Transcribe every word, number, and punctuation mark exactly as shown
- REFLOW the text into logical paragraphs - do NOT preserve the original line breaks
- Join lines that are part of the same sentence or paragraph into flowing text
- Start new paragraphs only where there is a logical break (new section, new topic, numbered clauses like "PRIMERO:", "SEGUNDO:", etc.)
- Preserve section headers and numbered items on their own lines
- If text is faded or unclear, make your best interpretation based on context
- Ignore any highlighter marks, stamps, or non-text elements
- Do NOT add any commentary, notes, or headers - only output the transcribed text
- Do NOT add titles like "TRANSCRIBED TEXT", "DOCUMENTO TRANSCRITO", or similar
- Do NOT translate - keep the original language
- Start directly with the document content

Output ONLY the transcribed text:`, langName)
	}
	return fmt.Sprintf(`Transcribe ALL the text from this scanned document image exactly as it appears.

Instructions:
- This is a scanned document in %s
- Transcribe every word, number, and punctuation mark exactly as shown
- Preserve the original paragraph structure
- If text is faded or unclear, make your best interpretation based on context
- Ignore any highlighter marks, stamps, or non-text elements
- Do NOT add any commentary, notes, or headers - only output the transcribed text
- Do NOT add titles like "TRANSCRIBED TEXT", "DOCUMENTO TRANSCRITO", or similar
- Do NOT translate - keep the original language
- Start directly with the document content

Output ONLY the transcribed text:`, langName)
}

// revisePrompt builds the cleanup instruction for previously recognized text.
func revisePrompt(text, langName string) string {
	return fmt.Sprintf(`Clean up this OCR-transcribed text in %s. Fix obvious errors while preserving the EXACT meaning and structure.

Rules:
- Fix character recognition errors (e.g., "rn" that should be "m", "1" that should be "l")
- Fix broken words and sentences
- Fix punctuation and accents
- Preserve ALL original content - do not add, remove, or paraphrase anything
- Keep the same paragraph structure
- If unsure about a word, keep the original
- Do NOT translate or summarize
- Do NOT add any commentary

Original text:
%s

Cleaned text:`, langName, text)
}
