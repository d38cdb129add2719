package usecase

import "fmt"

func buildRewritePrompt(question string) string {
	return fmt.Sprintf(`You rewrite turf management questions into search queries for a knowledge base of product labels, disease guides, cultural practice guides and university research.

Rules:
- Expand abbreviations (DS = dollar spot, BP = brown patch).
- Add active ingredients for brand names.
- For product questions include "rate" and "application".
- Keep the query under 100 words.
- If the question is already specific, change it minimally.

Respond with JSON only: {"query": "<rewritten search query>"}

Question: %s`, question)
}

func buildGroundingPrompt(question, answer, context string) string {
	return fmt.Sprintf(`You are a fact-checker for a turf management assistant. Verify whether the answer is supported by the source context. Be strict about product rates: a specific rate not present in the sources is an unsupported claim.

Source context:
%s

Answer:
%s

Question:
%s

Respond with JSON only:
{"grounded": true|false, "confidence": 0.0-1.0, "issues": [], "unsupported_claims": []}`, context, answer, question)
}
