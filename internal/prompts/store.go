package prompts

import (
	"embed"
	"fmt"
)

//go:embed templates/*.txt
var templateFS embed.FS

// systemPromptFiles maps each module to its embedded system-prompt resource.
var systemPromptFiles = map[Module]string{
	ModuleMessage:          "message_interpretation.txt",
	ModuleAudio:            "audio_interpretation.txt",
	ModuleGlossary:         "metaphor_glossary.txt",
	ModuleResponse:         "response_helper.txt",
	ModuleRoutine:          "routine_planner.txt",
	ModuleDecoder:          "decoder.txt",
	ModuleRoleplay:         "roleplay.txt",
	ModuleRoleplayFeedback: "roleplay_feedback.txt",
	ModuleTranslator:       "translator.txt",
}

// userPromptTemplates maps each module to its user-turn template. Each template
// contains exactly one {text} placeholder, replaced literally at compose time.
var userPromptTemplates = map[Module]string{
	ModuleMessage:          "Analiza el siguiente mensaje:\n\n{text}",
	ModuleAudio:            "Analiza la siguiente transcripción de audio:\n\n{text}",
	ModuleGlossary:         "Explica la siguiente expresión:\n\n{text}",
	ModuleResponse:         "Ayúdame a responder al siguiente mensaje:\n\n{text}",
	ModuleRoutine:          "Ayúdame a crear una rutina con estos datos:\n\n{text}",
	ModuleDecoder:          "Analiza el subtexto y tono de este mensaje:\n\n{text}",
	ModuleRoleplay:         "Historial de conversación:\n\n{text}",
	ModuleRoleplayFeedback: "Proporciona feedback sobre esta conversación:\n\n{text}",
	ModuleTranslator:       "Desglosa literalmente la siguiente expresión:\n\n{text}",
}

// Template is the immutable prompt pair registered for a module.
type Template struct {
	System string // system prompt text
	User   string // user-turn template containing the {text} placeholder
}

// Store holds the per-module prompt templates. Templates are loaded eagerly at
// construction and never re-read afterwards.
type Store struct {
	templates map[Module]Template
}

// NewStore loads every registered module's templates from the embedded
// resources. A missing resource is a packaging error, not a user error, and
// fails construction.
func NewStore() (*Store, error) {
	templates := make(map[Module]Template, len(Modules))

	for _, m := range Modules {
		name, ok := systemPromptFiles[m]
		if !ok {
			return nil, fmt.Errorf("prompts: module %q has no system prompt registered", m)
		}

		body, err := templateFS.ReadFile("templates/" + name)
		if err != nil {
			return nil, fmt.Errorf("prompts: template %s not found: %w", name, err)
		}

		user, ok := userPromptTemplates[m]
		if !ok {
			return nil, fmt.Errorf("prompts: module %q has no user template registered", m)
		}

		templates[m] = Template{
			System: string(body),
			User:   user,
		}
	}

	return &Store{templates: templates}, nil
}

// Load returns the template pair for a module.
func (s *Store) Load(m Module) (Template, error) {
	t, ok := s.templates[m]
	if !ok {
		return Template{}, fmt.Errorf("prompts: no template loaded for module %q", m)
	}
	return t, nil
}
