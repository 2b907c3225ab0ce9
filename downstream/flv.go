package downstream

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/codec/h264parser"
	"github.com/bugVanisher/avpush/media/container/flv"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
	"github.com/bugVanisher/avpush/statistics"
)

// Result 一次拉流的汇总
type Result struct {
	Tags        int                      `json:"tags"`
	VideoFrames int                      `json:"videoFrames"`
	AudioFrames int                      `json:"audioFrames"`
	KeyFrames   int                      `json:"keyFrames"`
	VideoCodec  string                   `json:"videoCodec"`
	Width       int                      `json:"width,omitempty"`
	Height      int                      `json:"height,omitempty"`
	SampleRate  int                      `json:"sampleRate,omitempty"`
	Channels    int                      `json:"channels,omitempty"`
	Stats       statistics.StreamHandler `json:"stats"`
}

// FlvDownStreamer 拉取http-flv, 可选写到Writer
type FlvDownStreamer struct {
	Url    string
	Writer io.Writer

	client *http.Client
	avFlow *statistics.AVFlow

	mu     sync.Mutex
	result Result
}

func NewFlvDownStreamer(url string, writer io.Writer) *FlvDownStreamer {
	dialer := net.Dialer{}
	httpTransport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &FlvDownStreamer{
		Url:    url,
		Writer: writer,
		client: &http.Client{Transport: httpTransport},
		avFlow: statistics.NewAVFlow(),
	}
}

// Result 拉流过程中也可以调用
func (d *FlvDownStreamer) Result() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.result
	r.Stats = d.avFlow.Snapshot()
	return r
}

func (d *FlvDownStreamer) Pull(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.Url, nil)
	if err != nil {
		log.Error().Err(err).Str("url", d.Url).Msg("[HTTPFLVIngester] prepare fail")
		return false, errs.Wrapf(errs.ErrConnectURL, "url: %s", d.Url)
	}

	req.Header.Set("User-Agent", "avpush")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Range", "bytes=0-")
	req.Header.Set("Connection", "close")

	response, err := d.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", d.Url).Msg("[HTTPFLVIngester] req fail")
		return false, errs.Wrapf(errs.ErrConnectURL, "url: %s", d.Url)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return false, errs.Wrapf(errs.ErrStreamNotExist, "url: %s status: %d", d.Url, response.StatusCode)
	}

	stop := make(chan struct{})
	defer close(stop)
	go d.LogStatistic(stop)

	demuxer := flv.NewDemuxer(response.Body)
	if err = demuxer.Prepare(); err != nil {
		return false, errs.Wrapf(err, "url: %s", d.Url)
	}
	var muxer *flv.Muxer
	if d.Writer != nil {
		muxer = flv.NewMuxer(d.Writer, demuxer.HasVideo(), demuxer.HasAudio())
		defer muxer.Flush()
	}

	for {
		tag, err := demuxer.ReadTag()
		if err != nil {
			got := d.Result().Tags > 0
			// ctx结束或者对端关闭都算正常结束
			if err == io.EOF || ctx.Err() != nil {
				log.Info().Str("url", d.Url).Any("result", d.Result()).Msg("[HTTPFLVIngester] finished")
				return got, nil
			}
			log.Error().Err(err).Msg("read tag error")
			return got, errs.Wrapf(errs.ErrConnectURL, "url: %s", d.Url)
		}
		if err = d.handle(tag); err != nil {
			log.Warn().Err(err).Uint8("type", tag.Type).Msg("[HTTPFLVIngester] skip tag")
		}
		if muxer != nil {
			if err = muxer.WriteTag(tag); err != nil {
				return true, err
			}
		}
	}
}

func (d *FlvDownStreamer) handle(tag flvio.Tag) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.result.Tags++
	ts := time.Duration(tag.Timestamp) * time.Millisecond
	switch tag.Type {
	case flvio.TAG_VIDEO:
		vt, err := flv.ParseVideoTag(tag.Data)
		if err != nil {
			return err
		}
		d.result.VideoCodec = vt.Codec.String()
		if vt.PacketType == flv.PACKET_SEQHDR {
			d.AfterReadHeader(vt)
			return nil
		}
		key := vt.FrameType == flv.FRAME_KEY
		d.result.VideoFrames++
		if key {
			d.result.KeyFrames++
		}
		d.avFlow.Stat(av.NewVideoFrame(vt.Data, ts, key))
	case flvio.TAG_AUDIO:
		at, err := flv.ParseAudioTag(tag.Data)
		if err != nil {
			return err
		}
		if at.PacketType == flv.AAC_SEQHDR {
			d.result.SampleRate, d.result.Channels, err = flv.ParseAudioSpecificConfig(at.Data)
			return err
		}
		d.result.AudioFrames++
		d.avFlow.Stat(av.NewAudioFrame(at.Data, ts))
	}
	return nil
}

// AfterReadHeader 只有H265能从SPS取到分辨率
func (d *FlvDownStreamer) AfterReadHeader(vt flv.VideoTag) {
	if d.result.VideoFrames == 0 {
		log.Info().Str("codec", vt.Codec.String()).Msg("[HTTPFLVIngester]read first header")
	}
	if vt.Codec != av.H265 {
		return
	}
	var rec h264parser.HEVCDecoderConfRecord
	if _, err := rec.Unmarshal(vt.Data); err != nil || len(rec.SPS) == 0 {
		return
	}
	if cfg, err := flv.ParseHEVCSPS(rec.SPS[0]); err == nil {
		d.result.Width, d.result.Height = cfg.Width, cfg.Height
	}
}

func (d *FlvDownStreamer) LogStatistic(done chan struct{}) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			log.Debug().Any("statistic", d.Result()).Msgf("%s stat", d.Url)
		}
	}
}
