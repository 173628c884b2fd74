// Package preview renders profile pages for two audiences: social crawlers,
// which get a small standalone document of Open Graph and Twitter Card tags,
// and people, who get the prebuilt application shell with the same tags
// injected into its head.
//
// A request flows through Classifier, ResolveIdentifier, Fetcher, Extractor
// and Builder; Service composes them. Only a failing profile store produces
// an error. A missing profile renders with site defaults.
package preview
