package preferences

import "context"

// provider proposes a value for a key, or reports no opinion.
type provider struct {
	name   string
	origin State
	value  func(ctx context.Context) (string, bool)
}

// resolution is the outcome of walking a provider chain.
type resolution struct {
	value  string
	origin State
	from   string
}

// resolve tries providers in order. Proposals outside the allow-list count as
// no opinion. The definition's fallback terminates every chain.
func resolve(ctx context.Context, d definition, chain []provider) resolution {
	for _, p := range chain {
		v, ok := p.value(ctx)
		if !ok {
			continue
		}
		v = d.normalize(v)
		if d.allowed(v) {
			return resolution{value: v, origin: p.origin, from: p.name}
		}
	}
	return resolution{value: d.fallback, origin: Defaulted, from: "fallback"}
}

// systemProvider proposes the host-derived default for a key.
func systemProvider(d definition, host Host) provider {
	return provider{
		name:   "system",
		origin: Defaulted,
		value: func(context.Context) (string, bool) {
			switch d.key {
			case Theme:
				return host.SystemTheme(), true
			case Language:
				return MatchLanguage(host.HostLocale())
			}
			return "", false
		},
	}
}

// defaultChain is the chain used by Reset: system, then fallback.
func defaultChain(d definition, host Host) []provider {
	return []provider{systemProvider(d, host)}
}
