package ssh

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/eniac111/plumbops-ipmi/internal/types"
)

// Client is an SSH connection plus the agent socket used to authenticate it.
type Client struct {
	*ssh.Client
	agentConn net.Conn
}

// Close closes the connection and the agent socket.
func (c *Client) Close() error {
	err := c.Client.Close()
	if c.agentConn != nil {
		_ = c.agentConn.Close()
	}
	return err
}

// Connect opens an SSH connection using user/password or user/key auth.
func Connect(host types.Host, log zerolog.Logger) (*Client, error) {
	var authMethods []ssh.AuthMethod
	var agentConn net.Conn
	closeAgent := func() {
		if agentConn != nil {
			_ = agentConn.Close()
		}
	}

	if host.Password != "" {
		authMethods = append(authMethods, ssh.Password(host.Password))
	}

	if host.KeyPath != "" {
		signer, err := readSigner(host.KeyPath)
		if err != nil {
			return nil, err
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	// Fall back to the default key when no key path is provided
	if host.KeyPath == "" {
		if home, err := homeDir(); err == nil {
			defaultKeyPath := filepath.Join(home, ".ssh", "id_rsa")
			if signer, err := readSigner(defaultKeyPath); err == nil {
				authMethods = append(authMethods, ssh.PublicKeys(signer))
				log.Debug().Str("key", defaultKeyPath).Msg("using default SSH key")
			} else {
				log.Debug().Err(err).Msg("default SSH key unavailable")
			}
		}
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			agentConn = conn
			authMethods = append(authMethods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			log.Debug().Msg("using SSH agent")
		} else {
			log.Debug().Err(err).Msg("SSH agent unavailable")
		}
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication methods available for %s", host.Name)
	}

	hostKeyCallback, err := hostKeys(host)
	if err != nil {
		closeAgent()
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            host.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
	}

	port := host.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host.Name, fmt.Sprint(port))

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		closeAgent()
		return nil, fmt.Errorf("failed to dial SSH %s: %w", addr, err)
	}
	log.Debug().Str("addr", addr).Str("user", host.User).Msg("connected to delegate")
	return &Client{Client: client, agentConn: agentConn}, nil
}

func readSigner(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key: %w", err)
	}
	return signer, nil
}

func hostKeys(host types.Host) (ssh.HostKeyCallback, error) {
	if host.Insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	home, err := homeDir()
	if err != nil {
		return nil, err
	}
	cb, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}
	return cb, nil
}

func homeDir() (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return usr.HomeDir, nil
}
