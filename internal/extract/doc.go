// Package extract turns source documents into plain text.
//
// Expected failures (unreadable files, empty documents, formats that need a
// tool that is not installed) are reported as a Result with a Reason rather
// than an error, so a single bad textbook never aborts an index build.
//
// Supported formats:
//
//	.txt .md .markdown  read as UTF-8 (invalid sequences dropped)
//	.docx               word/document.xml paragraphs
//	.pdf                delegated to pdftotext when it is on PATH
//	.doc                legacy Word, always missing-capability:doc
package extract
