package oracle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/celim/oraculo/internal/knowledge"
	"github.com/celim/oraculo/internal/memory"
)

// systemInstructions constrain the model to the retrieved knowledge base.
// The shop's customers speak Portuguese; answers follow the house format
// for product lookups and refuse politely when the answer is not in the
// retrieved context.
const systemInstructions = `Você é o Oráculo, o assistente virtual da loja de espetos.

Regras:
- Responda SOMENTE com base nas informações da base de conhecimento fornecida abaixo. Não invente informações.
- Ao informar produtos e preços, use o formato: {Descrição} - {Preço}.
- Se a informação pedida não estiver na base de conhecimento, diga educadamente que não encontrou essa informação e sugira falar com um atendente.
- Seja breve, simpático e direto. Responda em português.`

// noContextNotice is injected when retrieval yields nothing, so the model
// refuses instead of hallucinating.
const noContextNotice = "(nenhuma informação encontrada na base de conhecimento para esta pergunta)"

// buildMessages assembles the bounded prompt: knowledge context and user
// facts ride the system side via the first user message preamble, history
// turns keep their original roles, and the question closes the sequence.
func buildMessages(question string, contextDocs []knowledge.Result, facts map[string]string, history []memory.Turn) []*ai.Message {
	var preamble strings.Builder

	preamble.WriteString("Base de conhecimento:\n")
	if len(contextDocs) == 0 {
		preamble.WriteString(noContextNotice)
		preamble.WriteString("\n")
	} else {
		for i, result := range contextDocs {
			fmt.Fprintf(&preamble, "%d. %s\n", i+1, strings.TrimSpace(result.Document.Content))
		}
	}

	if len(facts) > 0 {
		preamble.WriteString("\nInformações conhecidas sobre o cliente:\n")
		keys := make([]string, 0, len(facts))
		for k := range facts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&preamble, "- %s: %s\n", k, facts[k])
		}
	}

	messages := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart(preamble.String())),
		ai.NewModelMessage(ai.NewTextPart("Entendido. Vou responder apenas com base na base de conhecimento.")),
	}

	for _, turn := range history {
		part := ai.NewTextPart(turn.Content)
		if turn.Role == memory.RoleModel {
			messages = append(messages, ai.NewModelMessage(part))
		} else {
			messages = append(messages, ai.NewUserMessage(part))
		}
	}

	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(question)))
	return messages
}
