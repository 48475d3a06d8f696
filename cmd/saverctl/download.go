package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"instantsaver/internal/delivery"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// stdoutTarget selects standard output as the download destination.
const stdoutTarget = "-"

var (
	errTerminalOutput = errors.New("refusing to write binary media to a terminal; use -o <file>")
	errNoFilename     = errors.New("download did not suggest a filename; use -o <file>")
)

// isTerminal is swapped in tests.
var isTerminal = term.IsTerminal

func newDownloadCmd(e env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download a link's media to a file or stdout",
		Long: "Download streams the merged media for a link. Without -o the file is named after the " +
			"server's suggested attachment name in the current directory. Use -o - for stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := classifyArg(args[0], lo.Must(cmd.Flags().GetString("platform")))
			if err != nil {
				return err
			}

			kind := lo.Must(cmd.Flags().GetString("profile"))
			if ref.IsProfile() && !cmd.Flags().Changed("profile") {
				kind = string(delivery.KindImage)
			}
			profile, err := delivery.ParseProfile(kind, strconv.Itoa(lo.Must(cmd.Flags().GetInt("height"))))
			if err != nil {
				return err
			}
			if err := delivery.Validate(delivery.NewValidator(), ref, profile); err != nil {
				return err
			}

			target := lo.Must(cmd.Flags().GetString("output"))
			if target == stdoutTarget && writesToTerminal(cmd.OutOrStdout()) {
				return errTerminalOutput
			}

			dest := &destination{fs: e.fs, path: target, stdout: cmd.OutOrStdout()}
			req := delivery.Request{Ref: ref, Profile: profile, Title: lo.Must(cmd.Flags().GetString("title"))}

			return withPipeline(e, func(p *pipeline) error {
				resp := newFileResponse(dest.open)
				streamErr := p.streamer.Stream(cmd.Context(), resp, req)
				if streamErr == nil {
					streamErr = resp.err
				}
				if err := dest.finish(streamErr != nil); err != nil && streamErr == nil {
					streamErr = err
				}
				if streamErr != nil {
					return streamErr
				}
				if dest.name != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d bytes)\n", dest.name, resp.written)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringP("platform", "p", "", "Only accept links for this platform (instagram, youtube)")
	cmd.Flags().String("profile", string(delivery.KindVideo), "What to download: video, audio or image")
	cmd.Flags().Int("height", 0, "Video height ceiling in pixels (0 = best available)")
	cmd.Flags().String("title", "", "Label used for the suggested filename")
	cmd.Flags().StringP("output", "o", "", "Output file, or - for stdout")
	return cmd
}

func writesToTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(int(f.Fd()))
}

// fileResponse lets the proxy write into a local destination. The
// destination is opened when headers are committed, so a download that
// fails before its first byte creates nothing.
type fileResponse struct {
	header  http.Header
	open    func(http.Header) (io.Writer, error)
	out     io.Writer
	err     error
	status  int
	written int64
}

func newFileResponse(open func(http.Header) (io.Writer, error)) *fileResponse {
	return &fileResponse{header: make(http.Header), open: open}
}

func (f *fileResponse) Header() http.Header { return f.header }

func (f *fileResponse) WriteHeader(code int) {
	if f.status != 0 {
		return
	}
	f.status = code
	if code != http.StatusOK {
		f.err = fmt.Errorf("unexpected status %d", code)
		return
	}
	f.out, f.err = f.open(f.header)
}

func (f *fileResponse) Write(b []byte) (int, error) {
	if f.status == 0 {
		f.WriteHeader(http.StatusOK)
	}
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.out.Write(b)
	f.written += int64(n)
	return n, err
}

// destination resolves where a download lands.
type destination struct {
	fs     afero.Fs
	path   string
	stdout io.Writer

	file afero.File
	name string
}

func (d *destination) open(h http.Header) (io.Writer, error) {
	if d.path == stdoutTarget {
		return d.stdout, nil
	}

	name := d.path
	if name == "" {
		name = suggestedFilename(h)
		if name == "" {
			return nil, errNoFilename
		}
	}

	file, err := d.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	d.file = file
	d.name = name
	return file, nil
}

// finish closes the file and removes it when the download failed.
func (d *destination) finish(failed bool) error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	if failed {
		_ = d.fs.Remove(d.name)
		d.name = ""
	}
	return err
}

// suggestedFilename reads the attachment name, reduced to a bare file name.
func suggestedFilename(h http.Header) string {
	_, params, err := mime.ParseMediaType(h.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	name := filepath.Base(params["filename"])
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
