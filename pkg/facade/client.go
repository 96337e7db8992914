package facade

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial opens a CommandServiceClient to addr using legacyCodec. Callers
// that need transport security should dial with grpc.WithTransportCredentials
// themselves and wrap the resulting ClientConn in NewCommandServiceClient
// instead of calling Dial.
func Dial(addr string) (CommandServiceClient, func() error, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(legacyCodec{})),
	)
	if err != nil {
		return nil, nil, err
	}
	return NewCommandServiceClient(conn), conn.Close, nil
}
