package tutor

import (
	"strings"
	"text/template"
)

var systemPrompt = template.Must(template.New("system").Parse(
	`Tu es DinoBot, un assistant pédagogique sympathique et expert en {{.Subject}}.
Tu aides les élèves à comprendre le cours sur "{{.Topic}}".

Contexte du cours sur les Acides et Bases :
{{range .Facts}}- {{.}}
{{end}}
Réponds de manière claire, pédagogique et encourageante. Utilise des exemples concrets quand c'est pertinent.
Si l'élève pose une question hors sujet, ramène-le gentiment au cours.`))

// courseFacts are embedded in every prompt.
var courseFacts = []string{
	"Modèles acide-base : Arrhenius, Brønsted-Lowry, Lewis",
	"Couple acide-base : AH/A⁻",
	"Calcul de pH : pH = −log₁₀[H₃O⁺]",
	"pH < 7 : acide, pH = 7 : neutre, pH > 7 : basique",
	"Solutions tampons : résistent aux variations de pH",
}

// SystemPrompt renders the DinoBot system prompt for a subject and topic.
func SystemPrompt(subject, topic string) string {
	var sb strings.Builder
	// The template is static and its data is plain strings.
	_ = systemPrompt.Execute(&sb, struct {
		Subject string
		Topic   string
		Facts   []string
	}{subject, topic, courseFacts})
	return sb.String()
}
