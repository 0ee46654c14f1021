// Package secretstore defines the capability contract a cloud-backed secret
// store must satisfy to sit behind the secret manager.
//
// Aegis separates two concerns that are easy to conflate:
//   - the two mandatory local encrypted keystores (internal/localstore),
//     which are always present and are never implementations of this
//     interface
//   - optional cloud stores (AWS Secrets Manager, Azure Key Vault, an OS
//     keychain, or anything an embedding application wires in) that
//     implement CloudStore and are consulted only after the local stores
//     have had a chance to answer
//
// internal/secretmanager imports only this interface, never a concrete
// adapter package — AWS/Azure/keychain support is supplied by the embedding
// application at construction time, keeping the core free of any particular
// cloud SDK.
package secretstore
