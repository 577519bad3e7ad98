package models

// RefusalMessage is the canonical answer returned whenever the system
// cannot ground a response in the supplied context. QueryResult couples it
// to an empty source list; the two must never diverge.
const RefusalMessage = "The selected content or book does not contain enough information to answer this question."

// RefusalCorePhrase is the fragment checked (case-insensitively) in raw
// model output to detect that the model itself declined to answer.
const RefusalCorePhrase = "does not contain enough information"

// SourceExcerptLength bounds the text carried by a SourceReference.
const SourceExcerptLength = 200

// FallbackIndicators are hedging phrases that mark a model response as an
// ungrounded deflection when the canonical refusal phrase is absent. The
// list is tunable, not structural.
var FallbackIndicators = []string{
	"sorry",
	"i don't know",
	"there is no information",
	"not mentioned in the text",
	"not specified in the context",
	"cannot determine",
	"no information provided",
	"not provided in the context",
}

// GlobalPromptTemplate takes the labeled context block and the question.
var GlobalPromptTemplate = `You are an AI assistant that answers questions based only on the provided context from a book.
Answer the question using ONLY the information in the context.
Do not use any external knowledge or make assumptions beyond what's in the context.
If the answer is not available in the context, respond with exactly: "` + RefusalMessage + `"

Context:
%s

Question: %s

Answer:`

// SelectedTextPromptTemplate takes the literal selected text and the
// question. No retrieval context is ever mixed in.
var SelectedTextPromptTemplate = `You are an AI assistant that answers questions based only on the provided selected text.
Answer the question using ONLY the information in the selected text.
Do not use any external knowledge or information beyond what is provided in the selected text.
If the answer is not available in the selected text, respond with exactly: "` + RefusalMessage + `"

Selected Text:
%s

Question: %s

Answer:`
