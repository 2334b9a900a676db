// Package license binds decryption keys to a device through a remote license authority.
//
// A client describes its device with a MAC address and a hardware descriptor (GPU name and memory,
// or the CPU model), posts both together with its API key, and receives the decryption key
// XOR-obfuscated with the big-endian bytes of a server timestamp. Every request is a single
// attempt: no retries, no sessions and no caching of keys.
//
// Known limitation: the device descriptor follows the hardware. Replacing a network card, moving to
// another virtual machine or spoofing the MAC address changes it, and an authority that binds
// API keys to a MAC address will then refuse the device. The scheme gates access for cooperating
// clients; it does not protect keys from a user who controls the decrypting machine.
//
// Authority is a small development implementation of the server side of the exchange.
package license
