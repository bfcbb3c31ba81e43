package prompts

import (
	"fmt"
	"strings"
)

// textPlaceholder is the single substitution point in user-prompt templates.
const textPlaceholder = "{text}"

// personalizedModules are the modules whose system prompt accepts contextual
// personalization blocks (user profile, scene character).
var personalizedModules = map[Module]bool{
	ModuleRoleplay: true,
}

// UnknownModuleError reports a module identifier that is not part of the
// enumeration. It surfaces as a client error, never a server error.
type UnknownModuleError struct {
	Name string
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("módulo no válido: %s", e.Name)
}

// Composer resolves module identifiers into concrete prompt pairs. It is a
// pure function of its inputs plus the read-only template store.
type Composer struct {
	store *Store
}

// NewComposer creates a composer over a loaded template store.
func NewComposer(store *Store) *Composer {
	return &Composer{store: store}
}

// Compose resolves moduleID, injects optional profile/scene context into the
// system prompt, and substitutes text into the user template.
//
// The substitution is a single literal replacement, never a format or template
// engine call: the request text is untrusted and may itself contain brace
// placeholder syntax (e.g. serialized JSON conversation history), which must
// pass through unchanged.
func (c *Composer) Compose(moduleID, text string, userProfile, scenarioContext map[string]any) (string, string, error) {
	module, ok := ParseModule(moduleID)
	if !ok {
		return "", "", &UnknownModuleError{Name: moduleID}
	}

	tmpl, err := c.store.Load(module)
	if err != nil {
		return "", "", err
	}

	system := tmpl.System
	if personalizedModules[module] {
		system += personalizationBlocks(userProfile, scenarioContext)
	}

	user := strings.Replace(tmpl.User, textPlaceholder, text, 1)

	return system, user, nil
}

// personalizationBlocks builds the context blocks appended to the system
// prompt: one for the user's profile, one for the scene character.
func personalizationBlocks(userProfile, scenarioContext map[string]any) string {
	var b strings.Builder

	if name := stringValue(userProfile, "name"); name != "" {
		b.WriteString("\n\n---\nContexto del usuario: el usuario se llama ")
		b.WriteString(name)
		if gender := stringValue(userProfile, "gender"); gender != "" {
			b.WriteString(" (género: ")
			b.WriteString(gender)
			b.WriteString(")")
		}
		b.WriteString(". Dirígete al usuario por su nombre y de forma acorde a su género.")
	}

	if character := stringValue(scenarioContext, "character_name"); character != "" {
		b.WriteString("\n\n---\nContexto de la escena: interpretas a ")
		b.WriteString(character)
		if role := stringValue(scenarioContext, "character_role"); role != "" {
			b.WriteString(", ")
			b.WriteString(role)
		}
		b.WriteString(". Mantente en el personaje durante toda la conversación.")
	}

	return b.String()
}

// stringValue returns m[key] if it is a non-empty string.
func stringValue(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
