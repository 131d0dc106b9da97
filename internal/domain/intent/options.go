package intent

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithRules replaces the default rule table.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		if len(rules) > 0 {
			c.rules = rules
		}
	}
}

// WithExtraRules appends rules to the default table.
func WithExtraRules(rules ...Rule) Option {
	return func(c *Classifier) {
		c.rules = append(c.rules, rules...)
	}
}
