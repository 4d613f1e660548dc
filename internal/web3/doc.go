// Package web3 reads the chain definitions file and, through the provider
// subpackage, turns a named chain plus a private key from the environment
// into a core.WalletClient.
package web3
