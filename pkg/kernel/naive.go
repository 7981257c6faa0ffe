package kernel

// NaiveKernel maps one worker to one output pixel and reads the three
// input bytes for that pixel directly from the backing buffer.
type NaiveKernel struct{}

func (NaiveKernel) Name() string { return "naive" }

func (NaiveKernel) RunBlock(a Args, cfg LaunchConfig, bx, by int) {
	for ty := 0; ty < cfg.Block.Y; ty++ {
		for tx := 0; tx < cfg.Block.X; tx++ {
			x := bx*cfg.Block.X + tx
			y := by*cfg.Block.Y + ty
			// Grid rounding spawns workers past the image edge; they
			// must terminate without touching memory.
			if x >= a.Width || y >= a.Height {
				continue
			}
			i := (y*a.Width + x) * 3
			a.Out[y*a.Width+x] = luminance(a.In[i], a.In[i+1], a.In[i+2])
		}
	}
}
