package llm

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptSpec holds the prompt building blocks. A YAML file may
// override any field; unset fields keep their built-in default.
type PromptSpec struct {
	ClassifierSystem string `yaml:"classifier_system"`
	GuardrailSystem  string `yaml:"guardrail_system"`
	Identity         string `yaml:"identity"`
	Tone             string `yaml:"tone"`
	KeyFacts         string `yaml:"key_facts"`
	Escalation       string `yaml:"escalation"`
	Rules            string `yaml:"rules"`
}

func DefaultPromptSpec() PromptSpec {
	return PromptSpec{
		ClassifierSystem: "You are an intent classifier for ZEB.be. Return ONLY valid JSON.",
		GuardrailSystem:  "Quality control for ZEB.be support. Return ONLY valid JSON.",
		Identity:         "You are ZEB Assistant — official AI support for ZEB.be, Belgium's loved fashion retailer.",
		Tone:             "Warm, friendly, helpful — like a ZEB store colleague. Short paragraphs, no walls of text. End every reply with an offer to help further.",
		KeyFacts: `- Free delivery: Belgium, Netherlands, France, Luxembourg (Bpost)
- Returns: FREE from Belgium within 30 days via Bpost or ZEB store
- Return portal: https://zeb.returnless.com/
- NO returns: underwear, cosmetics, face masks, Panini items
- Gift cards: valid indefinitely, not exchangeable for cash
- Payments: Bancontact, Visa, Mastercard, PayPal, Apple Pay, Sodexo/Monizze, ZEB Gift Card
- Student discount: 10% for students aged 17-26
- Next-day delivery cutoff (Belgium): 8 PM on working days
- Refund timeline: max 10 business days after return received
- Contact: https://www.zeb.be/nl/contact
- Stores: https://www.zeb.be/nl/stores`,
		Escalation: `- Lost parcel but tracking shows delivered
- Refund waited > 14 days
- Chargeback / payment dispute
- Legal / GDPR queries
- Hostile or severely distressed customer`,
		Rules: `- NEVER fabricate order details or tracking numbers
- NEVER share one customer's data with another
- Acknowledge frustration BEFORE solving
- Include relevant links (return portal, contact, stores)`,
	}
}

// LoadPromptSpec reads the YAML spec at path and layers it over the
// defaults. A missing file is not an error; the defaults apply.
func LoadPromptSpec(path string) (PromptSpec, error) {
	spec := DefaultPromptSpec()
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return spec, nil
		}
		return spec, err
	}
	var override PromptSpec
	if err := yaml.Unmarshal(b, &override); err != nil {
		return spec, err
	}
	merge(&spec.ClassifierSystem, override.ClassifierSystem)
	merge(&spec.GuardrailSystem, override.GuardrailSystem)
	merge(&spec.Identity, override.Identity)
	merge(&spec.Tone, override.Tone)
	merge(&spec.KeyFacts, override.KeyFacts)
	merge(&spec.Escalation, override.Escalation)
	merge(&spec.Rules, override.Rules)
	return spec, nil
}

func merge(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
