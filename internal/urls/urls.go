package urls

// Documentation URLs for guides and troubleshooting
// All URLs point to the documentation site at https://tuftsceeo.github.io/smartmotor/

// GettingStarted is the quick start guide for pairing a controller and a
// receiver through a channel relay.
const GettingStarted = "https://tuftsceeo.github.io/smartmotor/getting-started/"

// RelaySetup covers running the local development relay, TLS options,
// and mDNS announcement on a classroom network.
const RelaySetup = "https://tuftsceeo.github.io/smartmotor/relay/setup/"

// ChannelProtocol documents the envelope format, topic conventions, and the
// heartbeat and resync behavior devices rely on.
const ChannelProtocol = "https://tuftsceeo.github.io/smartmotor/reference/channel-protocol/"

// Troubleshooting provides solutions to common issues: relays that never
// answer the upgrade, devices that reconnect in a loop, and stale partners.
const Troubleshooting = "https://tuftsceeo.github.io/smartmotor/troubleshooting/"
