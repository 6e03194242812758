//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"google.golang.org/grpc/metadata"
)

// ActorMetadataKey is the request metadata key carrying the caller identity.
const ActorMetadataKey = "x-alarm-actor"

// Actor identifies who issued a request.
type Actor struct {
	// Hostname is the machine the request came from.
	Hostname string
	// Username is the account that issued it.
	Username string
}

// String renders the actor as user@host.
func (a Actor) String() string {
	return a.Username + "@" + a.Hostname
}

// DetectActor gathers host and user information for audit trail.
func DetectActor() (Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Actor{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return Actor{}, fmt.Errorf("current user: %w", err)
	}

	return Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// ActorFromIncoming returns the actor recorded in the incoming request metadata.
func ActorFromIncoming(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}

	values := md.Get(ActorMetadataKey)
	if len(values) == 0 || values[0] == "" {
		return "", false
	}

	return values[0], true
}
