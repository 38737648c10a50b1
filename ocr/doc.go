package ocr

// Package ocr defines the engine contract for turning page images into text.
// Two providers implement it: ocr/tesseract wraps the local Tesseract
// library, ocr/claude calls the Anthropic vision API. Optional capabilities
// (orientation detection, text revision) are separate interfaces so the
// pipeline can query for them instead of assuming them.
