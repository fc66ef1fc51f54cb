package risk

// defaultRules mirrors original_source's db/seed_rules.py DEFAULT_RULES:
// the baseline rule set a fresh deployment starts with. SeedDefaultRules
// inserts any rule named here that doesn't already exist, by name, so
// re-running seed is a no-op once the rules are in place.
var defaultRules = []Rule{
	{
		Name:        "high_value_payment",
		Description: "Escalate high value payment confirmations for review.",
		EventTypes:  []string{"payment_intent_confirm"},
		Type:        RuleAmountThreshold,
		Action:      DecisionReview,
		Weight:      2.0,
		Config: map[string]interface{}{
			"thresholds": map[string]interface{}{
				"USD":     "5000",
				"EUR":     "4500",
				"default": "4000",
			},
		},
		Enabled: true,
	},
	{
		Name:        "blocked_ip_country",
		Description: "Block traffic originating from embargoed countries.",
		EventTypes:  []string{"payment_intent_confirm", "wallet_transaction"},
		Type:        RuleBlocklistCountry,
		Action:      DecisionDecline,
		Weight:      5.0,
		Config: map[string]interface{}{
			"blocked": []interface{}{"KP", "SY", "IR"},
		},
		Enabled: true,
	},
	{
		Name:        "country_mismatch_review",
		Description: "Require review when IP country differs from the known user country.",
		EventTypes:  []string{"payment_intent_confirm", "wallet_transaction"},
		Type:        RuleCountryMismatch,
		Action:      DecisionReview,
		Weight:      1.0,
		Config:      map[string]interface{}{},
		Enabled:     true,
	},
	{
		Name:        "disposable_email_block",
		Description: "Block attempts from disposable email domains.",
		EventTypes:  []string{"payment_intent_confirm"},
		Type:        RuleEmailDomainBlock,
		Action:      DecisionDecline,
		Weight:      3.0,
		Config: map[string]interface{}{
			"domains": []interface{}{"mailinator.com", "tempmail.com"},
		},
		Enabled: true,
	},
}
