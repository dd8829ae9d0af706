package database

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SetupTunnel establishes an SSH tunnel to cfg.Host:cfg.Port through
// cfg.SSHHost and returns a copy of cfg pointing at the local end, plus a
// cleanup function closing the tunnel.
func SetupTunnel(cfg Config) (Config, func(), error) {
	key, err := os.ReadFile(cfg.SSHKey)
	if err != nil {
		return cfg, nil, fmt.Errorf("unable to read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return cfg, nil, fmt.Errorf("unable to parse private key: %w", err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.SSHKnownHosts != "" {
		hostKeyCallback, err = knownhosts.New(cfg.SSHKnownHosts)
		if err != nil {
			return cfg, nil, fmt.Errorf("unable to load known hosts: %w", err)
		}
	}

	sshPort := cfg.SSHPort
	if sshPort == 0 {
		sshPort = 22
	}
	sshClient, err := ssh.Dial("tcp", net.JoinHostPort(cfg.SSHHost, strconv.Itoa(sshPort)), &ssh.ClientConfig{
		User:            cfg.SSHUser,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
	})
	if err != nil {
		return cfg, nil, fmt.Errorf("unable to connect to SSH server: %w", err)
	}

	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		sshClient.Close()
		return cfg, nil, fmt.Errorf("unable to setup local listener: %w", err)
	}

	remote := net.JoinHostPort(cfg.Host, strconv.Itoa(defaultPort(cfg)))
	go func() {
		for {
			localConn, err := listener.Accept()
			if err != nil {
				// listener closed by cleanup
				return
			}

			remoteConn, err := sshClient.Dial("tcp", remote)
			if err != nil {
				log.Error().Err(err).Str("remote", remote).Msg("ssh tunnel: dial remote")
				localConn.Close()
				continue
			}

			go copyConn(localConn, remoteConn)
			go copyConn(remoteConn, localConn)
		}
	}()

	tunneled := cfg
	tunneled.Host = "localhost"
	tunneled.Port = listener.Addr().(*net.TCPAddr).Port
	tunneled.SSHKey = ""

	cleanup := func() {
		listener.Close()
		sshClient.Close()
	}
	return tunneled, cleanup, nil
}

func defaultPort(cfg Config) int {
	if cfg.Port != 0 {
		return cfg.Port
	}
	if cfg.Driver == DriverMySQL {
		return 3306
	}
	return 5432
}

func copyConn(dst, src net.Conn) {
	defer dst.Close()
	defer src.Close()
	if _, err := io.Copy(dst, src); err != nil {
		log.Debug().Err(err).Msg("ssh tunnel: copy")
	}
}
