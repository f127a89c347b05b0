package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	// OutcomeRange is the resolution of a dice roll: outcomes land in [0, 9999].
	OutcomeRange = 10000

	// AlgorithmTag identifies the derivation scheme recorded in every proof.
	AlgorithmTag = "HMAC-SHA512"

	// RangeTag is the outcome range recorded in every proof.
	RangeTag = "0-9999"

	serverSeedBytes = 32
	clientSeedBytes = 16

	// hmacWindow hex chars of the digest are folded into an outcome.
	// 5 hex chars = 20 bits, hence the 2^20 divisor below.
	hmacWindow = 5
)

// GenerateServerSeed returns a fresh 256-bit server secret, hex encoded.
// It stays hidden until the seed pair is rotated out.
func GenerateServerSeed() string {
	return randomHex(serverSeedBytes)
}

// GenerateClientSeed returns a 128-bit client seed for players who do not
// supply their own.
func GenerateClientSeed() string {
	return randomHex(clientSeedBytes)
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashServerSeed returns the SHA-256 commitment of a server seed. The hash is
// shown to the player before any bet so the seed cannot be swapped afterwards.
func HashServerSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// DeriveOutcome maps a seed pair and nonce to a roll in [0, upperBound).
//
// HMAC-SHA512 keyed by the server seed over "serverSeed-clientSeed-nonce",
// first five hex digits of the digest folded through 2^20 and scaled to the
// bound. The fold is slightly biased compared to rejection sampling, but it
// is the wire format every issued commitment was made against: changing any
// constant here invalidates all previously verifiable bets.
func DeriveOutcome(serverSeed, clientSeed string, nonce, upperBound int) int {
	mac := hmac.New(sha512.New, []byte(serverSeed))
	mac.Write([]byte(serverSeed + "-" + clientSeed + "-" + strconv.Itoa(nonce)))
	digest := hex.EncodeToString(mac.Sum(nil))

	lucky, _ := strconv.ParseUint(digest[:hmacWindow], 16, 64)

	outcome := int(float64(lucky) / float64(1<<(4*hmacWindow)) * float64(upperBound))
	if outcome > upperBound-1 {
		outcome = upperBound - 1
	}
	return outcome
}

// VerifyDiceRoll recomputes the commitment and the outcome from a fully
// revealed seed triple. Both checks are independent; a bet is only proven
// fair when both come back true. Operates purely on the caller's values, so
// a player can run it without trusting any server state.
func VerifyDiceRoll(serverSeed, serverSeedHash, clientSeed string, nonce, result int) (hashMatches, outcomeMatches bool) {
	hashMatches = HashServerSeed(serverSeed) == serverSeedHash
	outcomeMatches = DeriveOutcome(serverSeed, clientSeed, nonce, OutcomeRange) == result
	return hashMatches, outcomeMatches
}

// FairnessProof is the verification bundle snapshotted into each bet at
// settlement time. It is stored verbatim so later verification never depends
// on the seed pair's mutable state.
type FairnessProof struct {
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int    `json:"nonce"`
	Result         int    `json:"result"`
	Algorithm      string `json:"algorithm"`
	Range          string `json:"range"`
	Timestamp      int64  `json:"timestamp"`
}

// NewFairnessProof captures the proof bundle for a settled bet.
func NewFairnessProof(serverSeedHash, clientSeed string, nonce, result int) FairnessProof {
	return FairnessProof{
		ServerSeedHash: serverSeedHash,
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		Result:         result,
		Algorithm:      AlgorithmTag,
		Range:          RangeTag,
		Timestamp:      time.Now().UnixMilli(),
	}
}
