// Package security screens untrusted page text before it reaches a
// critic or refiner prompt.
//
// Scraped pages are pasted verbatim into LLM prompts, so a page that tells
// the model to ignore its instructions or carries an encoded payload is
// dropped in favour of the next search result:
//
//	if v := security.Screen(text); v.Suspicious {
//		logger.Warn("page rejected", map[string]interface{}{"reasons": v.Reasons})
//	}
package security
