package prompts

import "fmt"

// OntologyGuidelines describes the vocabulary of the people/company graph
const OntologyGuidelines = `Ontology:
- foaf:Person
- foaf:name
- ex:age
- ex:worksAt
- ex:Company nodes exist as ex:Company1, ex:Company2, etc.
- People nodes exist as ex:Person1, ex:Person2, etc.`

// QueryRules constrains the shape of generated queries
const QueryRules = `Rules:
- Always use proper prefixed URIs (ex:PersonX, ex:CompanyY)
- Output ONLY SPARQL (no markdown)
- SELECT for retrieval
- INSERT for adding triples
- DELETE for removing triples
- Do NOT include PREFIX lines
- Ensure valid SPARQL 1.1 syntax`

// TranslationTemplate is filled with the ontology, the rules and the user's
// question
const TranslationTemplate = `
You are an assistant that converts natural language into SPARQL queries.
%s

%s

Question: "%s"
SPARQL:
`

// Translation returns the prompt asking for a SPARQL query that answers
// question
func Translation(question string) string {
	return fmt.Sprintf(TranslationTemplate, OntologyGuidelines, QueryRules, question)
}
