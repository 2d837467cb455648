package ssh

import (
	"io"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPSource reads files from the delegate host. It satisfies creds.Source.
type SFTPSource struct {
	Client *ssh.Client
}

// ReadFile opens path over SFTP and returns its contents.
func (s SFTPSource) ReadFile(path string) ([]byte, error) {
	sftpClient, err := sftp.NewClient(s.Client)
	if err != nil {
		return nil, err
	}
	defer sftpClient.Close()

	f, err := sftpClient.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
