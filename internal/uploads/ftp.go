package uploads

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

type ftpConn interface {
	Stor(path string, r io.Reader) error
	Delete(path string) error
	Quit() error
}

// FTPStore uploads photos to an FTP server. Each call uses its own
// connection since a control connection cannot be shared between requests.
type FTPStore struct {
	dir     string
	baseURL string
	dial    func(ctx context.Context) (ftpConn, error)
}

func NewFTPStore(host, port, user, password, dir, baseURL string) *FTPStore {
	addr := host + ":" + port
	return &FTPStore{
		dir:     strings.Trim(dir, "/"),
		baseURL: strings.TrimRight(baseURL, "/"),
		dial: func(ctx context.Context) (ftpConn, error) {
			conn, err := ftp.Dial(addr, ftp.DialWithTimeout(10*time.Second), ftp.DialWithContext(ctx))
			if err != nil {
				return nil, fmt.Errorf("failed to connect to FTP: %w", err)
			}
			if err := conn.Login(user, password); err != nil {
				conn.Quit()
				return nil, fmt.Errorf("failed to login to FTP: %w", err)
			}
			return conn, nil
		},
	}
}

func (s *FTPStore) remotePath(name string) string {
	if s.dir == "" {
		return name
	}
	return s.dir + "/" + name
}

func (s *FTPStore) Save(ctx context.Context, originalName, contentType string, r io.Reader) (string, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Quit()

	remote := s.remotePath(NewName(originalName))
	if err := conn.Stor(remote, r); err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return s.baseURL + "/" + remote, nil
}

func (s *FTPStore) Remove(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, s.baseURL+"/") {
		return nil
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()

	remote := s.remotePath(path.Base(url))
	if err := conn.Delete(remote); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
