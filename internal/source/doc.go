// Package source defines the providers that iso-updater polls for images.
//
// # Providers
//
// A source is persisted as a Spec: a Kind and the payload for that kind.
// Spec dispatches the two operations every provider implements:
//
//   - Latest fetches and verifies the newest image unconditionally.
//   - Updated fetches only when something strictly newer than the installed
//     image exists, and returns nil otherwise.
//
// ConstantURL downloads a fixed URL once and never reports updates.
// LinuxMint crawls a versioned mirror, picks the highest release directory,
// verifies the signed sha256sum.txt, and checks the downloaded image against it.
//
// # Collaborators
//
// Providers never talk to the network directly. Downloads, directory
// crawling, key retrieval and signature checks go through the Fetcher,
// Crawler, KeyRetriever and SignatureVerifier interfaces in Env, so tests can
// substitute fakes.
//
// # Errors
//
// Every failure wraps one of ErrFetch, ErrCrawl or ErrVerification (or
// config.ErrConfig for an unusable Spec). "Checked and found nothing newer"
// is reported as a nil Artifact and a nil error, never as an error.
package source
